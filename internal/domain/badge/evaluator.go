package badge

import "time"

// Evaluator finds badges whose criteria are met and that the user does not
// hold yet.
type Evaluator struct {
	catalog *Catalog
}

func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// Pending returns the unearned badges satisfied by facts, in catalog order.
func (e *Evaluator) Pending(facts Facts, earned map[string]time.Time) []Badge {
	if e == nil || e.catalog == nil {
		return nil
	}
	var out []Badge
	for _, b := range e.catalog.badges {
		if _, ok := earned[b.Key]; ok {
			continue
		}
		if b.Criteria.Satisfied(facts) {
			out = append(out, b)
		}
	}
	return out
}

// Next returns the first pending badge. Rewards change the facts, so callers
// that chain awards re-evaluate after each one.
func (e *Evaluator) Next(facts Facts, earned map[string]time.Time) (Badge, bool) {
	pending := e.Pending(facts, earned)
	if len(pending) == 0 {
		return Badge{}, false
	}
	return pending[0], true
}
