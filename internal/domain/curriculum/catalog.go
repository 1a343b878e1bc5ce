package curriculum

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Resource is a study link attached to a focus.
type Resource struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Focus is one unit of the curriculum.
type Focus struct {
	ID         int        `json:"id"`
	FocusOrder int        `json:"focus_order"`
	Title      string     `json:"title"`
	Tempo      string     `json:"tempo"`
	Resources  []Resource `json:"resources"`
}

// Catalog is the static focus list sorted by FocusOrder.
type Catalog struct {
	focuses []Focus
	index   map[int]int
}

// NewCatalog validates focuses: ids in 1..max, unique ids and unique orders.
func NewCatalog(focuses []Focus) (*Catalog, error) {
	const op = "NewCatalog"

	if len(focuses) == 0 {
		return nil, shared.Validationf("curriculum", op, "catalog has no focuses")
	}

	sorted := make([]Focus, len(focuses))
	copy(sorted, focuses)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FocusOrder < sorted[j].FocusOrder })

	c := &Catalog{focuses: sorted, index: make(map[int]int, len(sorted))}
	orders := make(map[int]struct{}, len(sorted))
	for i, f := range sorted {
		if f.ID <= 0 {
			return nil, shared.Validationf("curriculum", op, "focus id must be positive, got %d", f.ID)
		}
		if strings.TrimSpace(f.Title) == "" {
			return nil, shared.Validationf("curriculum", op, "focus %d has no title", f.ID)
		}
		if _, dup := c.index[f.ID]; dup {
			return nil, shared.NewDomainError("curriculum", op, shared.ErrAlreadyExists, fmt.Sprintf("duplicate focus id %d", f.ID))
		}
		if _, dup := orders[f.FocusOrder]; dup {
			return nil, shared.NewDomainError("curriculum", op, shared.ErrAlreadyExists, fmt.Sprintf("duplicate focus_order %d", f.FocusOrder))
		}
		c.index[f.ID] = i
		orders[f.FocusOrder] = struct{}{}
	}
	return c, nil
}

// Focuses returns the focuses in focus order.
func (c *Catalog) Focuses() []Focus {
	out := make([]Focus, len(c.focuses))
	copy(out, c.focuses)
	return out
}

// Focus returns a focus by id.
func (c *Catalog) Focus(id int) (Focus, bool) {
	i, ok := c.index[id]
	if !ok {
		return Focus{}, false
	}
	return c.focuses[i], true
}

// Rank is the zero-based position of a focus in focus order, or -1.
func (c *Catalog) Rank(id int) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

func (c *Catalog) Len() int { return len(c.focuses) }

// Less orders two slots by focus order then key order. Slots of unknown
// focuses sort last.
func (c *Catalog) Less(a, b SlotRef) bool {
	ra, rb := c.Rank(a.FocusID), c.Rank(b.FocusID)
	if ra < 0 {
		ra = len(c.focuses)
	}
	if rb < 0 {
		rb = len(c.focuses)
	}
	if ra != rb {
		return ra < rb
	}
	return a.Key < b.Key
}
