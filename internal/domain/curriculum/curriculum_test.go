package curriculum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

var at = time.Date(2025, time.April, 1, 10, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	// Ids deliberately differ from focus order.
	c, err := NewCatalog([]Focus{
		{ID: 3, FocusOrder: 30, Title: "Arpeggios", Tempo: "70 BPM"},
		{ID: 1, FocusOrder: 10, Title: "Major scales", Tempo: "60 BPM"},
		{ID: 2, FocusOrder: 20, Title: "Minor scales", Tempo: "60 BPM"},
	})
	require.NoError(t, err)
	return c
}

func fill(p *Progress, focusID int, keys ...Key) {
	for _, k := range keys {
		p.Completed[SlotRef{FocusID: focusID, Key: k}] = at
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	require.Len(t, keys, 12)
	assert.Equal(t, "C", keys[0].String())
	assert.Equal(t, "B♭", KeyBb.String())
	assert.Equal(t, "F♯", KeyFs.String())
	assert.Equal(t, 10, KeyDb.Slot())

	k, err := ParseKey("F#")
	require.NoError(t, err)
	assert.Equal(t, KeyFs, k)
	k, err = ParseKey("Eb")
	require.NoError(t, err)
	assert.Equal(t, KeyEb, k)
	_, err = ParseKey("H")
	assert.Error(t, err)
}

func TestStepID(t *testing.T) {
	id := NewStepID(3, KeyFs)
	assert.Equal(t, StepID(311), id)

	ref, err := id.Resolve(3)
	require.NoError(t, err)
	assert.Equal(t, SlotRef{FocusID: 3, Key: KeyFs}, ref)

	_, err = StepID(313).Resolve(3)
	assert.True(t, shared.IsValidation(err))
	_, err = StepID(300).Resolve(3)
	assert.True(t, shared.IsValidation(err))
	_, err = id.Resolve(2)
	assert.True(t, shared.IsValidation(err))
	_, err = ParseStepID("abc")
	assert.True(t, shared.IsValidation(err))
}

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)

	_, err = NewCatalog([]Focus{{ID: 1, FocusOrder: 1, Title: "a"}, {ID: 2, FocusOrder: 1, Title: "b"}})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	c := testCatalog(t)
	focuses := c.Focuses()
	assert.Equal(t, []int{1, 2, 3}, []int{focuses[0].ID, focuses[1].ID, focuses[2].ID})
}

func TestCurrentAssignment(t *testing.T) {
	m := NewMachine(testCatalog(t))
	p := NewProgress("u1")

	a, err := m.CurrentAssignment(p, nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 1, a.Focus.ID)
	assert.Equal(t, KeyC, a.Key)
	assert.Equal(t, StepID(101), a.StepID)

	fill(p, 1, Keys()...)
	fill(p, 2, KeyC, KeyF)
	a, err = m.CurrentAssignment(p, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Focus.ID)
	assert.Equal(t, KeyG, a.Key)
	assert.Equal(t, 2, a.CompletedKeys)

	focus := 1
	a, err = m.CurrentAssignment(p, &focus)
	require.NoError(t, err)
	assert.Nil(t, a)

	unknown := 9
	_, err = m.CurrentAssignment(p, &unknown)
	assert.True(t, shared.IsNotFound(err))
}

func TestComplete(t *testing.T) {
	m := NewMachine(testCatalog(t))
	p := NewProgress("u1")

	out, err := m.Complete(p, NewStepID(1, KeyC), 1, at)
	require.NoError(t, err)
	assert.False(t, out.FocusComplete)
	require.NotNil(t, out.NextPosition)
	assert.Equal(t, SlotRef{FocusID: 1, Key: KeyF}, *out.NextPosition)
	assert.Equal(t, out.NextPosition, p.Position)

	_, err = m.Complete(p, NewStepID(1, KeyC), 1, at)
	assert.ErrorIs(t, err, shared.ErrStepAlreadyComplete)

	_, err = m.Complete(p, NewStepID(2, KeyC), 1, at)
	assert.True(t, shared.IsValidation(err))

	_, err = m.Complete(p, NewStepID(7, KeyC), 7, at)
	assert.True(t, shared.IsNotFound(err))
}

func TestComplete_WrapsThenMovesToNextFocus(t *testing.T) {
	m := NewMachine(testCatalog(t))
	p := NewProgress("u1")
	fill(p, 1, KeyC, KeyF, KeyG)

	// Completing B wraps around to the first empty key of the same focus.
	out, err := m.Complete(p, NewStepID(1, KeyB), 1, at)
	require.NoError(t, err)
	assert.Equal(t, SlotRef{FocusID: 1, Key: KeyD}, *out.NextPosition)

	p = NewProgress("u1")
	fill(p, 1, Keys()[:11]...)
	out, err = m.Complete(p, NewStepID(1, KeyB), 1, at)
	require.NoError(t, err)
	assert.True(t, out.FocusComplete)
	assert.Equal(t, SlotRef{FocusID: 2, Key: KeyC}, *out.NextPosition)
}

func TestRepair_SpecScenario(t *testing.T) {
	m := NewMachine(testCatalog(t))
	p := NewProgress("u1")

	fill(p, 1, Keys()...)
	fill(p, 2, KeyC, KeyF, KeyG, KeyBb, KeyA)
	fill(p, 3, Keys()[:10]...)
	p.Position = &SlotRef{FocusID: 3, Key: KeyFs}

	plan := m.Repair(p)
	require.True(t, plan.Fixed)
	assert.Equal(t, FixWrongFocus, plan.Reason)
	assert.Equal(t, SlotRef{FocusID: 3, Key: KeyFs}, *plan.Old)
	assert.Equal(t, SlotRef{FocusID: 2, Key: KeyD}, *plan.New)
	assert.Len(t, plan.Cleared, 2+10)
	assert.Equal(t, SlotRef{FocusID: 2, Key: KeyBb}, plan.Cleared[0])

	assert.Equal(t, 12, p.CompletedInFocus(1))
	assert.Equal(t, 3, p.CompletedInFocus(2))
	assert.Zero(t, p.CompletedInFocus(3))
	assert.Equal(t, SlotRef{FocusID: 2, Key: KeyD}, *p.Position)

	again := m.Repair(p)
	assert.False(t, again.Fixed)
	assert.Empty(t, again.Cleared)
}

func TestRepair_WrongKey(t *testing.T) {
	m := NewMachine(testCatalog(t))
	p := NewProgress("u1")
	fill(p, 1, KeyC, KeyG)
	p.Position = &SlotRef{FocusID: 1, Key: KeyD}

	plan := m.Repair(p)
	require.True(t, plan.Fixed)
	assert.Equal(t, FixWrongKey, plan.Reason)
	assert.Equal(t, []SlotRef{{FocusID: 1, Key: KeyG}}, plan.Cleared)
	assert.Equal(t, SlotRef{FocusID: 1, Key: KeyF}, *p.Position)
}

func TestRepair_NoStoredPosition(t *testing.T) {
	m := NewMachine(testCatalog(t))
	p := NewProgress("u1")
	fill(p, 1, KeyC, KeyG)

	plan := m.Repair(p)
	require.True(t, plan.Fixed)
	assert.Equal(t, FixWrongFocus, plan.Reason)
	assert.Nil(t, plan.Old)
	require.NotNil(t, plan.New)
	assert.Equal(t, SlotRef{FocusID: 1, Key: KeyF}, *plan.New)
	assert.Equal(t, []SlotRef{{FocusID: 1, Key: KeyG}}, plan.Cleared)
	assert.Equal(t, SlotRef{FocusID: 1, Key: KeyF}, *p.Position)
}

func TestRepair_NoChanges(t *testing.T) {
	m := NewMachine(testCatalog(t))

	fresh := NewProgress("u1")
	assert.False(t, m.Repair(fresh).Fixed)

	p := NewProgress("u1")
	fill(p, 1, KeyC)
	p.Position = &SlotRef{FocusID: 1, Key: KeyF}
	assert.False(t, m.Repair(p).Fixed)

	done := NewProgress("u1")
	for _, f := range []int{1, 2, 3} {
		fill(done, f, Keys()...)
	}
	plan := m.Repair(done)
	assert.False(t, plan.Fixed)
	assert.Len(t, done.Completed, 36)
}

func TestMilestones(t *testing.T) {
	p := NewProgress("u1")
	fill(p, 1, Keys()[:11]...)

	err := CanSubmit(p, 1, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	fill(p, 1, KeyB)
	require.NoError(t, CanSubmit(p, 1, nil))

	_, err = NewSubmission("u1", 1, "https://vimeo.com/123", at)
	assert.True(t, shared.IsValidation(err))

	sub, err := NewSubmission("u1", 1, "https://youtu.be/abc123", at)
	require.NoError(t, err)
	assert.Equal(t, GradePending, sub.Grade)

	assert.ErrorIs(t, CanSubmit(p, 1, sub), shared.ErrAlreadyExists)

	require.NoError(t, sub.ApplyGrade(GradeRedo, "tempo drifts in A♭", at))
	assert.NoError(t, CanSubmit(p, 1, sub))
	assert.ErrorIs(t, sub.ApplyGrade(GradePass, "", at), shared.ErrAlreadyGraded)
}
