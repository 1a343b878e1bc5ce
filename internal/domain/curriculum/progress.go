package curriculum

import (
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Progress is one user's curriculum state: the completed slots and the
// stored assignment position.
type Progress struct {
	UserID    string
	Completed map[SlotRef]time.Time
	// Position is the stored assignment. Nil when none has been stored or
	// the curriculum is finished.
	Position *SlotRef
}

// NewProgress returns empty progress for userID.
func NewProgress(userID string) *Progress {
	return &Progress{UserID: userID, Completed: make(map[SlotRef]time.Time)}
}

func (p *Progress) IsComplete(ref SlotRef) bool {
	_, ok := p.Completed[ref]
	return ok
}

// CompletedInFocus counts the completed slots of a focus.
func (p *Progress) CompletedInFocus(focusID int) int {
	n := 0
	for ref := range p.Completed {
		if ref.FocusID == focusID {
			n++
		}
	}
	return n
}

// FocusComplete reports whether all 12 slots of the focus are filled.
func (p *Progress) FocusComplete(focusID int) bool {
	for _, k := range Keys() {
		if !p.IsComplete(SlotRef{FocusID: focusID, Key: k}) {
			return false
		}
	}
	return true
}

// Assignment is the slot a user should practice next.
type Assignment struct {
	Focus         Focus  `json:"focus"`
	Key           Key    `json:"-"`
	KeyName       string `json:"key"`
	Slot          int    `json:"slot"`
	StepID        StepID `json:"step_id"`
	CompletedKeys int    `json:"completed_keys"`
	TotalKeys     int    `json:"total_keys"`
}

// Machine runs the curriculum rules over a catalog.
type Machine struct {
	catalog *Catalog
}

func NewMachine(catalog *Catalog) *Machine {
	return &Machine{catalog: catalog}
}

func (m *Machine) Catalog() *Catalog { return m.catalog }

// firstEmpty returns the first empty slot of a focus in key order.
func (m *Machine) firstEmpty(p *Progress, focusID int) (SlotRef, bool) {
	for _, k := range Keys() {
		ref := SlotRef{FocusID: focusID, Key: k}
		if !p.IsComplete(ref) {
			return ref, true
		}
	}
	return SlotRef{}, false
}

// Canonical returns the lowest incomplete slot, scanning focuses in focus
// order and keys in canonical order. False means everything is complete.
func (m *Machine) Canonical(p *Progress) (SlotRef, bool) {
	for _, f := range m.catalog.focuses {
		if ref, ok := m.firstEmpty(p, f.ID); ok {
			return ref, true
		}
	}
	return SlotRef{}, false
}

// CurrentAssignment returns the next assignment. With focusID set, only that
// focus is considered. A nil assignment means there is nothing left.
func (m *Machine) CurrentAssignment(p *Progress, focusID *int) (*Assignment, error) {
	var (
		ref SlotRef
		ok  bool
	)
	if focusID != nil {
		if _, known := m.catalog.Focus(*focusID); !known {
			return nil, shared.NewDomainError("curriculum", "CurrentAssignment", shared.ErrNotFound,
				fmt.Sprintf("focus %d not found", *focusID))
		}
		ref, ok = m.firstEmpty(p, *focusID)
	} else {
		ref, ok = m.Canonical(p)
	}
	if !ok {
		return nil, nil
	}
	return m.assignment(p, ref), nil
}

func (m *Machine) assignment(p *Progress, ref SlotRef) *Assignment {
	focus, _ := m.catalog.Focus(ref.FocusID)
	return &Assignment{
		Focus:         focus,
		Key:           ref.Key,
		KeyName:       ref.Key.String(),
		Slot:          ref.Key.Slot(),
		StepID:        ref.StepID(),
		CompletedKeys: p.CompletedInFocus(ref.FocusID),
		TotalKeys:     SlotsPerFocus,
	}
}

// CompleteOutcome is the effect of completing a slot.
type CompleteOutcome struct {
	Slot          SlotRef
	FocusComplete bool
	// NextPosition is the new stored position, nil when nothing is left.
	NextPosition *SlotRef
}

// Complete validates and applies a step completion to p in memory. The
// caller persists the slot and the new position.
func (m *Machine) Complete(p *Progress, stepID StepID, focusID int, at time.Time) (CompleteOutcome, error) {
	const op = "MarkComplete"

	if _, ok := m.catalog.Focus(focusID); !ok {
		return CompleteOutcome{}, shared.NewDomainError("curriculum", op, shared.ErrNotFound,
			fmt.Sprintf("focus %d not found", focusID))
	}
	ref, err := stepID.Resolve(focusID)
	if err != nil {
		return CompleteOutcome{}, err
	}
	if p.IsComplete(ref) {
		return CompleteOutcome{}, shared.NewDomainError("curriculum", op, shared.ErrStepAlreadyComplete,
			fmt.Sprintf("step %d is already complete", stepID))
	}

	p.Completed[ref] = at
	next := m.nextAfter(p, ref)
	p.Position = next

	return CompleteOutcome{
		Slot:          ref,
		FocusComplete: p.FocusComplete(focusID),
		NextPosition:  next,
	}, nil
}

// nextAfter finds the next empty slot after ref in the same focus, wrapping
// around its keys, then the first empty slot of any later focus.
func (m *Machine) nextAfter(p *Progress, ref SlotRef) *SlotRef {
	for i := 1; i < SlotsPerFocus; i++ {
		k := Key((int(ref.Key)-1+i)%SlotsPerFocus + 1)
		cand := SlotRef{FocusID: ref.FocusID, Key: k}
		if !p.IsComplete(cand) {
			return &cand
		}
	}
	for _, f := range m.catalog.focuses[m.catalog.Rank(ref.FocusID)+1:] {
		if cand, ok := m.firstEmpty(p, f.ID); ok {
			return &cand
		}
	}
	return nil
}

// FixReason explains a repair.
type FixReason string

const (
	FixNone       FixReason = ""
	FixWrongKey   FixReason = "wrong key"
	FixWrongFocus FixReason = "wrong focus"
)

// RepairPlan is the outcome of reconciling stored and canonical positions.
type RepairPlan struct {
	Fixed   bool
	Reason  FixReason
	Old     *SlotRef
	New     *SlotRef
	Cleared []SlotRef
}

// Repair compares the stored position with the canonical lowest incomplete
// slot. On mismatch it clears every completed slot at or after the canonical
// slot across the whole curriculum and moves the stored position there. The
// plan is applied to p in memory; the caller persists it.
//
// A user with no stored position and no completions is considered correct.
// A finished curriculum has no canonical slot and is never changed.
func (m *Machine) Repair(p *Progress) RepairPlan {
	canonical, ok := m.Canonical(p)
	if !ok {
		return RepairPlan{Old: p.Position}
	}

	stored := p.Position
	if stored == nil && len(p.Completed) == 0 {
		return RepairPlan{}
	}
	if stored != nil && *stored == canonical {
		return RepairPlan{Old: stored, New: stored}
	}

	// No stored assignment but some completions is reported as a wrong
	// focus with a nil Old.
	plan := RepairPlan{Fixed: true, Reason: FixWrongFocus, Old: stored}
	if stored != nil && stored.FocusID == canonical.FocusID {
		plan.Reason = FixWrongKey
	}

	for ref := range p.Completed {
		if !m.catalog.Less(ref, canonical) {
			plan.Cleared = append(plan.Cleared, ref)
		}
	}
	sort.Slice(plan.Cleared, func(i, j int) bool { return m.catalog.Less(plan.Cleared[i], plan.Cleared[j]) })
	for _, ref := range plan.Cleared {
		delete(p.Completed, ref)
	}

	newPos := canonical
	p.Position = &newPos
	plan.New = &newPos
	return plan
}
