package coach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/llm"
	"deepdive/internal/models"
	"deepdive/internal/storage"
)

const bundleReply = "```json\n" + `{
  "strategy": {"goal": "合意", "principles": ["結論先行"], "do": ["目的を言う"], "dont": ["長話"], "structure": ["目的", "提案"]},
  "drafts": [{"tone": "フラット", "message": "結論です。", "why_it_works": "短い", "risks": "冷たい"}],
  "expected_reactions": [{"reaction": "反対", "how_to_respond": "比較軸を示す"}],
  "postmortem": {"what_happened": "x", "hypotheses": [], "next_time_plan": [], "micro_skill": []},
  "assumptions": ["前提"]
}` + "\n```"

func seededPerson(t *testing.T, s *storage.MemoryStore) models.Person {
	t.Helper()
	people, err := s.ListPeople(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, people)
	return people[0]
}

func TestGenerateBundleWithoutModel(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	c := New(nil, store, nil, nil)

	b, err := c.GenerateBundle(context.Background(), Request{Kind: models.KindPost, PersonID: p.ID, InputText: "会議で揉めた"})
	require.NoError(t, err)
	assert.True(t, b.Fallback)
	assert.Equal(t, LocalModel, b.Model)
	require.NotNil(t, b.Payload.Postmortem)
	assert.Equal(t, "相手に伝わる形で前進させる", b.Payload.Strategy.Goal)
}

func TestGenerateBundleUnknownPerson(t *testing.T) {
	c := New(&scriptedClient{model: "m"}, storage.NewMemoryStore(), nil, nil)
	_, err := c.GenerateBundle(context.Background(), Request{PersonID: "ghost", InputText: "x"})
	require.ErrorIs(t, err, ErrPersonNotFound)
}

func TestGenerateBundleAcceptsModelOutput(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	client := &scriptedClient{model: "gpt-4.1-mini", replies: []string{bundleReply}}
	c := New(client, store, nil, nil)

	b, err := c.GenerateBundle(context.Background(), Request{Kind: models.KindPre, PersonID: p.ID, InputText: "仕様変更を伝える", Goal: "合意"})
	require.NoError(t, err)
	assert.False(t, b.Fallback)
	assert.Equal(t, "gpt-4.1-mini", b.Model)
	assert.Equal(t, 1, b.Attempts)
	assert.Nil(t, b.Payload.Postmortem, "PRE bundles carry no postmortem")
	assert.Equal(t, []string{"前提"}, b.Payload.Assumptions)

	require.Len(t, client.calls, 1)
	prompt := client.calls[0].prompt
	assert.Contains(t, prompt, "PREモード: postmortemは不要。")
	assert.Contains(t, prompt, "今回の目的: 合意")
	assert.Contains(t, prompt, "参照ノートソース: 直近ノート優先")
	assert.Contains(t, prompt, "仕様相談で背景説明が長くなり")
	assert.NotContains(t, prompt, StrictHint)
	assert.Equal(t, SchemaName, client.calls[0].opts.SchemaName)
	assert.InDelta(t, 0.5, *client.calls[0].opts.Temperature, 1e-9)
}

func TestGenerateBundleRetriesWithStrictHint(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	client := &scriptedClient{model: "m", replies: []string{"ごめんなさい", bundleReply}}
	c := New(client, store, nil, nil)

	b, err := c.GenerateBundle(context.Background(), Request{Kind: models.KindPost, PersonID: p.ID, InputText: "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Attempts)
	require.NotNil(t, b.Payload.Postmortem)
	require.Len(t, client.calls, 2)
	assert.True(t, strings.HasSuffix(client.calls[1].prompt, StrictHint))
}

func TestGenerateBundleExhaustion(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	client := &scriptedClient{model: "m", replies: []string{`{"drafts": []}`}, errs: []error{errors.New("timeout")}}
	c := New(client, store, nil, nil)

	b, err := c.GenerateBundle(context.Background(), Request{PersonID: p.ID, InputText: "x", Goal: "延期"})
	require.NoError(t, err)
	assert.True(t, b.Fallback)
	assert.Equal(t, "m-fallback", b.Model)
	assert.Equal(t, "延期", b.Payload.Strategy.Goal)
	assert.Nil(t, b.Payload.Postmortem)
}

func TestGenerateBundleStopsOnPermanentError(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	client := &scriptedClient{
		model:   "m",
		replies: []string{bundleReply},
		errs:    []error{&llm.StatusError{Provider: "gemini", Code: 403, Message: "forbidden"}},
	}
	c := New(client, store, nil, nil)

	b, err := c.GenerateBundle(context.Background(), Request{PersonID: p.ID, InputText: "x"})
	require.NoError(t, err)
	assert.True(t, b.Fallback)
	assert.Equal(t, 1, b.Attempts)
	assert.Len(t, client.calls, 1)
}

func TestPromptPrefersContextNotes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seededPerson(t, store)
	picked, err := store.CreateNote(ctx, strings.Repeat("長", 300), nil)
	require.NoError(t, err)
	_, err = store.CreateNote(ctx, "関係ないメモ", nil)
	require.NoError(t, err)

	client := &scriptedClient{model: "m", replies: []string{bundleReply}}
	_, err = New(client, store, nil, nil).GenerateBundle(ctx, Request{PersonID: p.ID, InputText: "x", ContextNoteIDs: []string{picked.ID, "gone"}})
	require.NoError(t, err)

	prompt := client.calls[0].prompt
	assert.Contains(t, prompt, "contextNoteIds(2件)優先")
	assert.Contains(t, prompt, strings.Repeat("長", promptNoteRunes)+`"`)
	assert.NotContains(t, prompt, strings.Repeat("長", promptNoteRunes+1))
	assert.NotContains(t, prompt, "関係ないメモ")
}
