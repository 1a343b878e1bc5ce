// Package catalog loads the static badge and curriculum catalogs from YAML.
// Catalogs are parsed and validated once at startup; a malformed entry stops
// the process instead of surfacing later as a runtime error.
package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
)

// Sources says where catalogs come from. A non-empty path wins over the
// embedded default.
type Sources struct {
	BadgesPath     string
	CurriculumPath string

	DefaultBadges     []byte
	DefaultCurriculum []byte
}

// Catalogs bundles both loaded catalogs.
type Catalogs struct {
	Badges     *badge.Catalog
	Curriculum *curriculum.Catalog
}

// Load reads and validates both catalogs.
func Load(src Sources, defaults badge.CriteriaDefaults) (*Catalogs, error) {
	badgeData, err := read(src.BadgesPath, src.DefaultBadges)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge catalog: %w", err)
	}
	badges, err := ParseBadges(badgeData, defaults)
	if err != nil {
		return nil, err
	}

	curriculumData, err := read(src.CurriculumPath, src.DefaultCurriculum)
	if err != nil {
		return nil, fmt.Errorf("failed to read curriculum catalog: %w", err)
	}
	focuses, err := ParseCurriculum(curriculumData)
	if err != nil {
		return nil, err
	}

	return &Catalogs{Badges: badges, Curriculum: focuses}, nil
}

func read(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	return os.ReadFile(path)
}

// ─────────────────────────────────────────────────────────────────────────────
// Badges
// ─────────────────────────────────────────────────────────────────────────────

type badgeFile struct {
	Badges []badgeSpec `yaml:"badges"`
}

type badgeSpec struct {
	Key           string `yaml:"key"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Category      string `yaml:"category"`
	CriteriaType  string `yaml:"criteria_type"`
	CriteriaValue int    `yaml:"criteria_value"`
	XPReward      int    `yaml:"xp_reward"`
	GemReward     int    `yaml:"gem_reward"`
}

// ParseBadges parses a badge catalog document. Unknown fields and unknown
// criteria types are errors.
func ParseBadges(data []byte, defaults badge.CriteriaDefaults) (*badge.Catalog, error) {
	var file badgeFile
	if err := decodeStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse badge catalog: %w", err)
	}

	badges := make([]badge.Badge, 0, len(file.Badges))
	for i, entry := range file.Badges {
		criteria, err := badge.ParseCriteria(entry.CriteriaType, entry.CriteriaValue, defaults)
		if err != nil {
			return nil, fmt.Errorf("badge #%d (%s): %w", i+1, entry.Key, err)
		}
		badges = append(badges, badge.Badge{
			Key:         entry.Key,
			Name:        entry.Name,
			Description: entry.Description,
			Category:    entry.Category,
			Criteria:    criteria,
			XPReward:    entry.XPReward,
			GemReward:   entry.GemReward,
		})
	}

	catalog, err := badge.NewCatalog(badges)
	if err != nil {
		return nil, fmt.Errorf("invalid badge catalog: %w", err)
	}
	return catalog, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Curriculum
// ─────────────────────────────────────────────────────────────────────────────

type curriculumFile struct {
	Focuses []focusSpec `yaml:"focuses"`
}

type focusSpec struct {
	ID         int                   `yaml:"id"`
	FocusOrder int                   `yaml:"focus_order"`
	Title      string                `yaml:"title"`
	Tempo      string                `yaml:"tempo"`
	Resources  []curriculum.Resource `yaml:"resources"`
}

// ParseCurriculum parses a curriculum catalog document.
func ParseCurriculum(data []byte) (*curriculum.Catalog, error) {
	var file curriculumFile
	if err := decodeStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse curriculum catalog: %w", err)
	}

	focuses := make([]curriculum.Focus, 0, len(file.Focuses))
	for _, entry := range file.Focuses {
		focuses = append(focuses, curriculum.Focus{
			ID:         entry.ID,
			FocusOrder: entry.FocusOrder,
			Title:      entry.Title,
			Tempo:      entry.Tempo,
			Resources:  entry.Resources,
		})
	}

	catalog, err := curriculum.NewCatalog(focuses)
	if err != nil {
		return nil, fmt.Errorf("invalid curriculum catalog: %w", err)
	}
	return catalog, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
