package coach

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/models"
	"deepdive/internal/storage"
)

func TestPickContextNoteIDsByText(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.DeleteAll(ctx))

	a, _ := store.CreateNote(ctx, "リリース 延期 の相談", nil)
	b, _ := store.CreateNote(ctx, "延期 が決まった", nil)
	c, _ := store.CreateNote(ctx, "リリース 延期 部長 と話した", nil)
	_, _ = store.CreateNote(ctx, "ランチ", nil)

	ids, err := PickContextNoteIDs(ctx, store, "リリース 延期 部長 x", models.KindPre, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, ids)
}

func TestPickContextNoteIDsFillsFromSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	notes, _ := store.ListNotes(ctx, 0)
	seeded := notes[0].ID

	other, _ := store.CreateNote(ctx, "別の話", nil)
	_, err := store.CreateSession(ctx, storage.SessionInput{Kind: models.KindPre, PersonID: p.ID, InputText: "x", ContextNoteIDs: []string{other.ID, seeded}})
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, storage.SessionInput{Kind: models.KindPost, PersonID: p.ID, InputText: "y", ContextNoteIDs: []string{"post-only"}})
	require.NoError(t, err)

	ids, err := PickContextNoteIDs(ctx, store, "仕様相談", models.KindPre, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{seeded, other.ID}, ids, "text hit first, session notes de-duplicated")
}
