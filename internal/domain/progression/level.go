package progression

import (
	"fmt"
	"sort"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// LevelTable maps cumulative XP to levels. thresholds[i] is the XP needed for
// level i+1, so thresholds[0] is always 0.
type LevelTable struct {
	thresholds []int
}

// NewLevelTable validates an explicit threshold list.
func NewLevelTable(thresholds []int) (LevelTable, error) {
	if len(thresholds) == 0 {
		return LevelTable{}, shared.Validationf("progression", "LevelTable", "threshold table is empty")
	}
	if thresholds[0] != 0 {
		return LevelTable{}, shared.Validationf("progression", "LevelTable", "level 1 threshold must be 0, got %d", thresholds[0])
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return LevelTable{}, shared.Validationf("progression", "LevelTable",
				"thresholds must be strictly increasing: level %d (%d) <= level %d (%d)",
				i+1, thresholds[i], i, thresholds[i-1])
		}
	}
	cp := make([]int, len(thresholds))
	copy(cp, thresholds)
	return LevelTable{thresholds: cp}, nil
}

// TriangularLevelTable builds the default table where reaching level n takes
// base * (n-1) * n / 2 XP: 0, 100, 300, 600, 1000, ...
func TriangularLevelTable(base, maxLevel int) (LevelTable, error) {
	if base < 1 {
		return LevelTable{}, shared.Validationf("progression", "LevelTable", "level base xp must be >= 1")
	}
	if maxLevel < 1 {
		return LevelTable{}, shared.Validationf("progression", "LevelTable", "max level must be >= 1")
	}
	thresholds := make([]int, maxLevel)
	for n := 1; n <= maxLevel; n++ {
		thresholds[n-1] = base * (n - 1) * n / 2
	}
	return NewLevelTable(thresholds)
}

// DefaultLevelTable is TriangularLevelTable(100, 100).
func DefaultLevelTable() LevelTable {
	t, err := TriangularLevelTable(100, 100)
	if err != nil {
		panic(fmt.Sprintf("default level table: %v", err))
	}
	return t
}

// MaxLevel is the highest level in the table.
func (t LevelTable) MaxLevel() int { return len(t.thresholds) }

// LevelFor returns the highest level whose threshold is <= totalXP.
// Negative XP maps to level 1.
func (t LevelTable) LevelFor(totalXP int) int {
	if len(t.thresholds) == 0 {
		return 1
	}
	// First index whose threshold exceeds totalXP; the level is that index.
	idx := sort.Search(len(t.thresholds), func(i int) bool { return t.thresholds[i] > totalXP })
	if idx == 0 {
		return 1
	}
	return idx
}

// Threshold returns the cumulative XP required for level.
func (t LevelTable) Threshold(level int) (int, bool) {
	if level < 1 || level > len(t.thresholds) {
		return 0, false
	}
	return t.thresholds[level-1], true
}

// LeveledUp reports whether moving from oldXP to newXP crosses a threshold.
func (t LevelTable) LeveledUp(oldXP, newXP int) bool {
	return t.LevelFor(newXP) > t.LevelFor(oldXP)
}

// LevelProgress describes where a user stands inside their current level.
type LevelProgress struct {
	Level          int  `json:"level"`
	XPIntoLevel    int  `json:"xp_into_level"`
	XPForNextLevel int  `json:"xp_for_next_level"`
	IsMaxLevel     bool `json:"is_max_level"`
}

// Progress returns the level progress for totalXP.
func (t LevelTable) Progress(totalXP int) LevelProgress {
	level := t.LevelFor(totalXP)
	start, _ := t.Threshold(level)
	next, ok := t.Threshold(level + 1)
	if !ok {
		return LevelProgress{Level: level, XPIntoLevel: totalXP - start, IsMaxLevel: true}
	}
	return LevelProgress{
		Level:          level,
		XPIntoLevel:    totalXP - start,
		XPForNextLevel: next - totalXP,
	}
}
