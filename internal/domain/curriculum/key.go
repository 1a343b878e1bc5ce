// Package curriculum tracks progress through an ordered list of focuses, each
// practiced in the 12 keys of the circle of fourths, and repairs progress that
// drifted out of canonical order.
package curriculum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// SlotsPerFocus is the number of key slots in every focus.
const SlotsPerFocus = 12

// Key is a key slot, 1..12 in canonical order.
type Key int

const (
	KeyC Key = iota + 1
	KeyF
	KeyG
	KeyD
	KeyBb
	KeyA
	KeyEb
	KeyE
	KeyAb
	KeyDb
	KeyFs
	KeyB
)

var keyNames = [SlotsPerFocus + 1]string{"", "C", "F", "G", "D", "B♭", "A", "E♭", "E", "A♭", "D♭", "F♯", "B"}

// Keys returns all keys in canonical order.
func Keys() []Key {
	out := make([]Key, SlotsPerFocus)
	for i := range out {
		out[i] = Key(i + 1)
	}
	return out
}

func (k Key) Valid() bool { return k >= KeyC && k <= KeyB }

// Slot is the 1-based slot index.
func (k Key) Slot() int { return int(k) }

func (k Key) String() string {
	if !k.Valid() {
		return "Key(" + strconv.Itoa(int(k)) + ")"
	}
	return keyNames[k]
}

// ParseKey accepts the canonical names plus ASCII spellings ("Bb", "F#").
func ParseKey(s string) (Key, error) {
	norm := strings.TrimSpace(s)
	norm = strings.NewReplacer("b", "♭", "#", "♯").Replace(norm)
	for k := KeyC; k <= KeyB; k++ {
		if keyNames[k] == norm {
			return k, nil
		}
	}
	return 0, shared.Validationf("curriculum", "ParseKey", "unknown key %q", s)
}

// StepID identifies one (focus, key) slot as focus_id*100 + slot.
type StepID int64

// NewStepID builds the step id for focusID and key.
func NewStepID(focusID int, key Key) StepID {
	return StepID(int64(focusID)*100 + int64(key))
}

// ParseStepID parses a decimal step id.
func ParseStepID(raw string) (StepID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, shared.WrapError("curriculum", "ParseStepID", shared.ErrValidation,
			fmt.Sprintf("malformed step_id %q", raw), err)
	}
	return StepID(n), nil
}

// Split returns the focus id and key encoded in s. The key may be invalid;
// callers check it with Resolve.
func (s StepID) Split() (focusID int, key Key) {
	return int(s / 100), Key(s % 100)
}

// Resolve validates s against the focus it is claimed to belong to.
func (s StepID) Resolve(focusID int) (SlotRef, error) {
	const op = "StepID.Resolve"

	if s <= 0 {
		return SlotRef{}, shared.Validationf("curriculum", op, "step_id must be positive, got %d", s)
	}
	f, k := s.Split()
	if !k.Valid() {
		return SlotRef{}, shared.Validationf("curriculum", op, "step_id %d has no key slot %d", s, int(k))
	}
	if f != focusID {
		return SlotRef{}, shared.Validationf("curriculum", op, "step_id %d does not belong to focus %d", s, focusID)
	}
	return SlotRef{FocusID: f, Key: k}, nil
}

func (s StepID) String() string { return strconv.FormatInt(int64(s), 10) }

// SlotRef addresses one key slot of one focus.
type SlotRef struct {
	FocusID int `json:"focus_id"`
	Key     Key `json:"key"`
}

func (r SlotRef) StepID() StepID { return NewStepID(r.FocusID, r.Key) }

func (r SlotRef) String() string { return fmt.Sprintf("focus %d / %s", r.FocusID, r.Key) }
