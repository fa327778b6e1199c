package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/coach"
	"deepdive/internal/models"
	"deepdive/internal/sparring"
	"deepdive/internal/storage"
)

type services struct {
	store    *storage.MemoryStore
	sparring *SparringService
	coaching *CoachingService
	sessions *SessionService
	person   models.Person
}

// newServices wires every service without a model, so each flow serves its
// deterministic fallback.
func newServices(t *testing.T) services {
	t.Helper()
	store := storage.NewMemoryStore()
	people, err := store.ListPeople(context.Background())
	require.NoError(t, err)
	rw, err := coach.NewRewriter(nil, 0, nil, nil)
	require.NoError(t, err)
	return services{
		store:    store,
		sparring: NewSparringService(store, sparring.NewGenerator(nil, store, sparring.DefaultOptions(), nil, nil), sparring.NewSummarizer(nil, nil, nil), nil),
		coaching: NewCoachingService(store, coach.New(nil, store, nil, nil), nil),
		sessions: NewSessionService(store, rw),
		person:   people[0],
	}
}

func TestSparringTurnValidation(t *testing.T) {
	s := newServices(t)
	_, err := s.sparring.Turn(context.Background(), SparringTurnInput{
		PersonID: s.person.ID,
		Scenario: "延期",
		History:  []models.ConversationTurn{{Role: models.RoleUser, Content: "   "}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSparringTurnAndClose(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)

	out, err := s.sparring.Turn(ctx, SparringTurnInput{
		PersonID: s.person.ID,
		Goal:     "延期に合意してもらう",
		Scenario: "仕様相談 でリリース延期を伝えたい",
		Mode:     models.ModeFacilitation,
		History:  []models.ConversationTurn{{Role: "system", Content: "延期したいです"}},
	})
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, sparring.LocalModel, out.Model)
	require.NotEmpty(t, out.SessionID)

	d, err := s.store.GetSessionDetail(ctx, out.SessionID)
	require.NoError(t, err)
	sp := d.Artifact.Payload.Sparring
	require.NotNil(t, sp)
	require.Len(t, sp.Turns, 2)
	assert.Equal(t, models.RoleUser, sp.Turns[0].Role)
	assert.Equal(t, "相手役: "+out.RoleplayReply+"\n\nコーチ: "+out.CoachFeedback, sp.Turns[1].Content)
	assert.NotEmpty(t, d.Session.ContextNoteIDs, "seeded note matches the scenario")

	next, err := s.sparring.Turn(ctx, SparringTurnInput{
		SessionID: out.SessionID,
		PersonID:  s.person.ID,
		Scenario:  "仕様相談 でリリース延期を伝えたい",
		History:   append(sp.Turns, models.ConversationTurn{Role: models.RoleUser, Content: "理由は品質です"}),
	})
	require.NoError(t, err)
	assert.Equal(t, out.SessionID, next.SessionID)

	summary, err := s.sparring.Close(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Len(t, summary.LearnedPoints, 3)
	require.NotNil(t, summary.GeneratedAt)

	plain, err := s.coaching.Run(ctx, CoachInput{PersonID: s.person.ID, InputText: "相談"})
	require.NoError(t, err)
	_, err = s.sparring.Close(ctx, plain.SessionID)
	require.ErrorIs(t, err, storage.ErrNoSparring)
}

func TestCoachingRun(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)

	_, err := s.coaching.Run(ctx, CoachInput{PersonID: s.person.ID})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.coaching.Run(ctx, CoachInput{PersonID: "ghost", InputText: "x"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	out, err := s.coaching.Run(ctx, CoachInput{Kind: models.KindPost, PersonID: s.person.ID, InputText: "仕様相談 で揉めた", Goal: "再発防止"})
	require.NoError(t, err)
	assert.Equal(t, coach.LocalModel, out.Model)
	require.NotNil(t, out.Payload.Postmortem)
	assert.Equal(t, "再発防止", out.Payload.Strategy.Goal)

	d, err := s.sessions.Detail(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, out.ArtifactID, d.Session.ArtifactID)
	assert.Equal(t, models.PostmortemBundle, d.Artifact.Type)
}

func TestAdoptAndSaveNote(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	out, err := s.coaching.Run(ctx, CoachInput{PersonID: s.person.ID, InputText: "相談"})
	require.NoError(t, err)

	_, err = s.sessions.SaveAdoptedNote(ctx, out.SessionID)
	require.ErrorIs(t, err, ErrNoAdoptedDraft)

	_, err = s.sessions.AdoptDraft(ctx, out.SessionID, " ", "msg")
	require.ErrorIs(t, err, ErrInvalidInput)

	adopted, err := s.sessions.AdoptDraft(ctx, out.SessionID, "ていねい", " 先に結論です。 ")
	require.NoError(t, err)
	assert.Equal(t, "先に結論です。", adopted.Message)

	note, err := s.sessions.SaveAdoptedNote(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "【送信メモ / 山田さん / ていねい】\n先に結論です。", note.Body)
	assert.Empty(t, note.Tags)
}

func TestCreatePersonPresets(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)

	_, err := s.sessions.CreatePerson(ctx, PersonInput{Name: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.sessions.CreatePerson(ctx, PersonInput{Name: "部長", PresetID: "nope"})
	require.ErrorIs(t, err, ErrInvalidInput)

	presets := s.sessions.Presets()
	require.NotEmpty(t, presets)
	last := presets[len(presets)-1]
	p, err := s.sessions.CreatePerson(ctx, PersonInput{Name: " 部長 ", PresetID: last.ID})
	require.NoError(t, err)
	assert.Equal(t, "部長", p.Name)
	assert.Equal(t, last.Axes, p.Axes)

	p, err = s.sessions.CreatePerson(ctx, PersonInput{Name: "同僚"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAxes(), p.Axes)
}

func TestRewriteAndReset(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)

	_, err := s.sessions.Rewrite(ctx, "文面", "loud")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, coach.ErrInvalidTone)

	got, err := s.sessions.Rewrite(ctx, "A案で進めます", coach.ToneDirect)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "結論です。"))

	require.NoError(t, s.sessions.Reset(ctx))
	ex, err := s.sessions.Export(ctx)
	require.NoError(t, err)
	assert.Empty(t, ex.People)
	assert.Empty(t, ex.Notes)
}
