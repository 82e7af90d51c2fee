package desk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	var s State = Idle{}

	s, err := BeginConfirm(s, "g1")
	require.NoError(t, err)
	assert.Equal(t, ConfirmingGuest{ID: "g1"}, s)

	_, err = BeginEdit(s, "g2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = BeginConfirm(s, "g2")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s, err = SetDraft(s, "001", "002")
	require.NoError(t, err)
	assert.Equal(t, ConfirmingGuest{ID: "g1", DraftPrimary: "001", DraftCompanion: "002"}, s)

	s = Cancel(s)
	assert.Equal(t, Idle{}, s)

	s, err = BeginEdit(s, "g2")
	require.NoError(t, err)
	assert.Equal(t, EditingGuest{ID: "g2"}, s)

	_, err = SetDraft(s, "001", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = SetDraft(Idle{}, "001", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFailedTransitionKeepsState(t *testing.T) {
	editing := EditingGuest{ID: "g1"}
	s, err := BeginConfirm(editing, "g2")
	require.Error(t, err)
	assert.Equal(t, editing, s)
}

func TestGuestID(t *testing.T) {
	_, ok := GuestID(Idle{})
	assert.False(t, ok)

	id, ok := GuestID(EditingGuest{ID: "a"})
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	id, ok = GuestID(ConfirmingGuest{ID: "b", DraftPrimary: "1"})
	assert.True(t, ok)
	assert.Equal(t, "b", id)
}

func TestReconcile(t *testing.T) {
	exists := func(id string) bool { return id == "alive" }

	assert.Equal(t, Idle{}, Reconcile(ConfirmingGuest{ID: "gone", DraftPrimary: "5"}, exists))
	assert.Equal(t, Idle{}, Reconcile(EditingGuest{ID: "gone"}, exists))
	assert.Equal(t, EditingGuest{ID: "alive"}, Reconcile(EditingGuest{ID: "alive"}, exists))
	assert.Equal(t, Idle{}, Reconcile(Idle{}, exists))
}

func TestParseFields(t *testing.T) {
	fields, err := ParseFields(splitPairs("DNI=30111222; Apellido y Nombre = Pérez, Ana ;"))
	require.NoError(t, err)
	assert.Equal(t, "30111222", fields.String("DNI"))
	assert.Equal(t, "Pérez, Ana", fields.String("Apellido y Nombre"))

	fields, err = ParseFields([]string{"Notas=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", fields.String("Notas"))

	_, err = ParseFields([]string{"no separator"})
	assert.Error(t, err)
	_, err = ParseFields([]string{"=value"})
	assert.Error(t, err)
}
