package sparring

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/models"
)

const lastUserMsg = "来週のリリース延期を部長にどう伝えるか相談したいです"

func turnRequest() TurnRequest {
	return TurnRequest{
		SessionID: "s-current",
		PersonID:  "p1",
		Goal:      "延期を合意する",
		Scenario:  "来週のリリースを延期したいが、部長は予定通りを望んでいる。",
		Mode:      models.ModeFacilitation,
		History:   []models.ConversationTurn{{Role: models.RoleUser, Content: lastUserMsg}},
	}
}

func newStore() *fakeStore {
	return &fakeStore{people: map[string]models.Person{"p1": yamada()}}
}

func encode(t *testing.T, r Response) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}

func TestGenerateTurnNoModel(t *testing.T) {
	store := newStore()
	g := NewGenerator(nil, store, DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())

	want := Fallback(FallbackInput{
		Mode:     models.ModeFacilitation,
		Goal:     "延期を合意する",
		Scenario: "来週のリリースを延期したいが、部長は予定通りを望んでいる。",
		LastUser: lastUserMsg,
		Person:   yamada(),
	})
	assert.True(t, res.Fallback)
	assert.Equal(t, LocalModel, res.Model)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, want.RoleplayReply, res.Response.RoleplayReply)
	assert.Equal(t, want.NextOptions, res.Response.NextOptions)
}

func TestGenerateTurnAcceptsFirstValid(t *testing.T) {
	client := &scriptedClient{model: "gpt-test", replies: []string{"```json\n" + encode(t, validResponse()) + "\n```"}}
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())

	assert.False(t, res.Fallback)
	assert.Equal(t, "gpt-test", res.Model)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, client.calls, 1)
	assert.NotContains(t, client.calls[0].prompt, StrictHint)
	assert.Equal(t, SchemaName, client.calls[0].opts.SchemaName)
	assert.InDelta(t, 0.5, *client.calls[0].opts.Temperature, 1e-9)
	assert.Contains(t, client.calls[0].prompt, "直近ユーザー発話: "+lastUserMsg)
	assert.Contains(t, client.calls[0].prompt, "相手名: 山田さん")
}

func TestGenerateTurnRetriesOnSingleOption(t *testing.T) {
	bad := validResponse()
	bad.NextOptions = []string{"結論: 延期します"}
	client := &scriptedClient{model: "gpt-test", replies: []string{encode(t, bad), encode(t, validResponse())}}
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, m)

	res := g.GenerateTurn(context.Background(), turnRequest())

	assert.False(t, res.Fallback)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, client.calls, 2)
	assert.Contains(t, client.calls[1].prompt, StrictHint)
	assert.Contains(t, client.calls[1].prompt, RetryHint)
	assert.InDelta(t, 0.5, *client.calls[0].opts.Temperature, 1e-9)
	assert.InDelta(t, 0.65, *client.calls[1].opts.Temperature, 1e-9)
	assert.Len(t, res.Response.NextOptions, 3)

	n, err := testutil.GatherAndCount(reg, "deepdive_quality_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGenerateTurnDiscardsPersonMisfit(t *testing.T) {
	misfit := validResponse()
	misfit.RoleplayReply = "もしよければ、リリース延期の件を詳しく聞かせてもらえますか。"
	misfit.CoachFeedback = "リリース延期の件、お気持ちはよくわかります。"
	misfit.NextOptions = []string{
		strings.Repeat("あ", 69) + "1",
		strings.Repeat("い", 69) + "2",
		strings.Repeat("う", 69) + "3",
	}
	client := &scriptedClient{model: "gpt-test", replies: []string{encode(t, misfit)}}
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())

	assert.True(t, res.Fallback)
	assert.Equal(t, "gpt-test-fallback", res.Model)
	assert.Len(t, client.calls, 2)
	assert.NotEqual(t, misfit.NextOptions, res.Response.NextOptions)
	assert.NoError(t, ValidateShape(res.Response))
}

func TestGenerateTurnBoundedAttempts(t *testing.T) {
	boom := errors.New("upstream down")
	client := &scriptedClient{model: "m", errs: []error{boom, boom, boom, boom}}
	opts := DefaultOptions()
	opts.MaxAttempts = 3
	g := NewGenerator(client, newStore(), opts, nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())

	assert.True(t, res.Fallback)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, client.calls, 3)
	assert.InDelta(t, 0.8, *client.calls[2].opts.Temperature, 1e-9)
}

func TestGenerateTurnRejectsRepetition(t *testing.T) {
	resp := validResponse()
	req := turnRequest()
	req.History = []models.ConversationTurn{
		{Role: models.RoleUser, Content: "最初の相談です。リリースの件。"},
		{Role: models.RoleAssistant, Content: resp.CombinedText()},
		{Role: models.RoleUser, Content: lastUserMsg},
	}
	client := &scriptedClient{model: "m", replies: []string{encode(t, resp)}}
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), req)

	assert.True(t, res.Fallback)
	assert.Len(t, client.calls, 2)
}

func TestGenerateTurnUnparseableOutput(t *testing.T) {
	client := &scriptedClient{model: "m", replies: []string{"申し訳ありませんが、お答えできません。"}}
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())
	assert.True(t, res.Fallback)
	assert.Len(t, client.calls, 2)
}

func TestGenerateTurnContext(t *testing.T) {
	now := time.Now()
	store := newStore()
	store.snapshots = []models.SparringSnapshot{
		{SessionID: "s-current", CreatedAt: now, Scenario: "今回"},
		{SessionID: "s-1", CreatedAt: now.Add(-time.Hour), Scenario: "前回の壁打ち", LastUser: "前回の発言"},
		{SessionID: "s-2", CreatedAt: now.Add(-2 * time.Hour), Scenario: "前々回"},
	}
	store.notes = []models.Note{
		{ID: "n1", Body: strings.Repeat("長", 150), CreatedAt: now},
		{ID: "n2", Body: "短いノート", CreatedAt: now},
	}
	req := turnRequest()
	req.ContextNoteIDs = []string{"missing", "n1", "n2"}
	client := &scriptedClient{model: "m", replies: []string{encode(t, validResponse())}}
	g := NewGenerator(client, store, DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), req)

	require.Len(t, res.Response.ContextRefs, 2)
	assert.Equal(t, "s-1", res.Response.ContextRefs[0].SessionID)
	assert.Equal(t, "s-2", res.Response.ContextRefs[1].SessionID)
	prompt := client.calls[0].prompt
	assert.Contains(t, prompt, "前回の壁打ち")
	assert.Contains(t, prompt, strings.Repeat("長", 100)+`"`)
	assert.NotContains(t, prompt, strings.Repeat("長", 101))
	assert.Contains(t, prompt, "短いノート")
}

func TestGenerateTurnStoreErrorsDegrade(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	client := &scriptedClient{model: "m", replies: []string{encode(t, validResponse())}}
	g := NewGenerator(client, store, DefaultOptions(), nil, nil)

	req := turnRequest()
	req.ContextNoteIDs = []string{"n1"}
	res := g.GenerateTurn(context.Background(), req)

	assert.False(t, res.Fallback)
	assert.Empty(t, res.Response.ContextRefs)
	assert.Contains(t, client.calls[0].prompt, "相手名: "+NeutralPersonName)
}

func TestGenerateTurnCapsLists(t *testing.T) {
	resp := validResponse()
	resp.Recommendations = append(resp.Recommendations, "比較表を作る", "期限を決める")
	resp.NextOptions = append(resp.NextOptions, "結論を先に伝えます")
	client := &scriptedClient{model: "m", replies: []string{encode(t, resp)}}
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())
	assert.Len(t, res.Response.Recommendations, 3)
	assert.Len(t, res.Response.NextOptions, 3)
}

func TestGenerateTurnZeroBaseTemperature(t *testing.T) {
	bad := validResponse()
	bad.NextOptions = []string{"結論: 延期します"}
	client := &scriptedClient{model: "m", replies: []string{encode(t, bad), encode(t, validResponse())}}
	opts := DefaultOptions()
	opts.BaseTemperature = 0
	g := NewGenerator(client, newStore(), opts, nil, nil)

	g.GenerateTurn(context.Background(), turnRequest())

	require.Len(t, client.calls, 2)
	require.NotNil(t, client.calls[0].opts.Temperature)
	assert.InDelta(t, 0.0, *client.calls[0].opts.Temperature, 1e-9)
	assert.InDelta(t, opts.TemperatureStep, *client.calls[1].opts.Temperature, 1e-9)
}

func TestGenerateTurnStopsOnPermanentError(t *testing.T) {
	client := &scriptedClient{
		model:   "m",
		errs:    []error{&llm.StatusError{Provider: "openai", Code: 400, Message: "bad request"}},
		replies: []string{encode(t, validResponse())},
	}
	g := NewGenerator(client, newStore(), DefaultOptions(), nil, nil)

	res := g.GenerateTurn(context.Background(), turnRequest())

	assert.True(t, res.Fallback)
	assert.Equal(t, "m-fallback", res.Model)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, client.calls, 1)
}
