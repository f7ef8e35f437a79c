package notes_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrosense/internal/notes"
	"agrosense/internal/prefs"
)

func TestAddListDelete(t *testing.T) {
	mem := prefs.NewMemoryStore()
	store := notes.NewStore(mem)
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return clock })

	first, err := store.Add("Slave(A1)", "  opened valve  ")
	require.NoError(t, err)
	assert.Equal(t, "opened valve", first.Content)
	assert.Equal(t, clock.UnixMilli(), first.Timestamp)

	clock = clock.Add(time.Hour)
	second, err := store.Add("Slave(A1)", "closed valve")
	require.NoError(t, err)

	list := store.List("Slave(A1)")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Empty(t, store.List("Slave(B2)"))

	require.NoError(t, store.Delete("Slave(A1)", first.ID))
	assert.ErrorIs(t, store.Delete("Slave(A1)", first.ID), notes.ErrNotFound)

	reloaded := notes.NewStore(mem)
	list = reloaded.List("Slave(A1)")
	require.Len(t, list, 1)
	assert.Equal(t, "closed valve", list[0].Content)
}

func TestAddValidation(t *testing.T) {
	store := notes.NewStore(prefs.NewMemoryStore())

	_, err := store.Add("Slave(A1)", "   ")
	assert.ErrorIs(t, err, notes.ErrEmptyContent)
	_, err = store.Add("", "text")
	assert.ErrorIs(t, err, notes.ErrNoDevice)
}

func TestCorruptNotesFallBackToEmpty(t *testing.T) {
	mem := prefs.NewMemoryStore()
	mem.SetRaw(prefs.NotesKey("Slave(A1)"), "42")

	store := notes.NewStore(mem)
	assert.Empty(t, store.List("Slave(A1)"))

	_, err := store.Add("Slave(A1)", "fresh start")
	require.NoError(t, err)
	assert.Len(t, store.List("Slave(A1)"), 1)
}
