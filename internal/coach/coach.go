// Package coach produces strategy and postmortem bundles for a coaching
// session and rewrites adopted drafts into a requested tone.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/models"
	"deepdive/internal/storage"
)

const (
	SchemaName  = "coaching_bundle"
	LocalModel  = "fallback-local"
	FallbackTag = "-fallback"
	StrictHint  = "前回の出力に不備がありました。厳密JSONのみを返してください。"

	attempts        = 2
	temperature     = 0.5
	noteScanLimit   = 80
	maxPromptNotes  = 6
	promptNoteRunes = 220
	maxSimilar      = 3
	flow            = "coach"
)

var ErrPersonNotFound = errors.New("coach: person not found")

var bundleSchema = llm.Object(map[string]*llm.Schema{
	"strategy": llm.Object(map[string]*llm.Schema{
		"goal":       llm.String(),
		"principles": llm.StringArray(),
		"do":         llm.StringArray(),
		"dont":       llm.StringArray(),
		"structure":  llm.StringArray(),
	}),
	"drafts": llm.ArrayOf(llm.Object(map[string]*llm.Schema{
		"tone":         llm.String(),
		"message":      llm.String(),
		"why_it_works": llm.String(),
		"risks":        llm.String(),
	})),
	"expected_reactions": llm.ArrayOf(llm.Object(map[string]*llm.Schema{
		"reaction":       llm.String(),
		"how_to_respond": llm.String(),
	})),
	"postmortem": llm.Object(map[string]*llm.Schema{
		"what_happened":  llm.String(),
		"hypotheses":     llm.StringArray(),
		"next_time_plan": llm.StringArray(),
		"micro_skill":    llm.StringArray(),
	}),
	"assumptions": llm.StringArray(),
}).Optional("postmortem", "assumptions")

// Store is the read side of storage used to build the prompt.
type Store interface {
	GetPerson(ctx context.Context, id string) (models.Person, error)
	ListNotes(ctx context.Context, limit int) ([]models.Note, error)
	ListSessions(ctx context.Context) ([]models.CoachingSession, error)
}

type Request struct {
	Kind           models.SessionKind
	PersonID       string
	InputText      string
	Goal           string
	ContextNoteIDs []string
}

type Bundle struct {
	Payload  models.ArtifactPayload
	Model    string
	Attempts int
	Fallback bool
}

type Coach struct {
	client  llm.Client
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(client llm.Client, store Store, log *zap.Logger, m *metrics.Metrics) *Coach {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coach{client: client, store: store, log: log.Named("coach"), metrics: m}
}

// GenerateBundle fails only when the person cannot be loaded; every model
// problem ends in the fallback payload.
func (c *Coach) GenerateBundle(ctx context.Context, req Request) (Bundle, error) {
	if req.Kind != models.KindPost {
		req.Kind = models.KindPre
	}
	person, err := c.store.GetPerson(ctx, req.PersonID)
	if errors.Is(err, storage.ErrNotFound) {
		return Bundle{}, fmt.Errorf("%w: %s", ErrPersonNotFound, req.PersonID)
	}
	if err != nil {
		return Bundle{}, fmt.Errorf("load person: %w", err)
	}

	fallback := func(model, reason string, n int) Bundle {
		c.metrics.Fallback(flow, reason)
		return Bundle{Payload: FallbackPayload(req.Kind, req.Goal), Model: model, Attempts: n, Fallback: true}
	}
	if c.client == nil {
		return fallback(LocalModel, "no_model", 0), nil
	}

	prompt := buildPrompt(req, person, c.promptNotes(ctx, req.ContextNoteIDs), c.similarSessions(ctx, req.PersonID))
	for i := 0; i < attempts; i++ {
		p := prompt + "\n"
		if i > 0 {
			p += StrictHint
		}
		log := c.log.With(zap.Int("attempt", i+1))
		raw, err := c.client.Generate(ctx, p, &llm.GenOptions{
			Temperature: llm.Temp(temperature),
			SchemaName:  SchemaName,
			Schema:      bundleSchema,
		})
		if err != nil {
			log.Warn("model call failed", zap.Error(err))
			c.metrics.Attempt(flow, "call_error")
			if llm.IsPermanent(err) {
				return fallback(c.client.Model()+FallbackTag, "provider_error", i+1), nil
			}
			continue
		}
		var payload models.ArtifactPayload
		if err := llm.DecodeObject(raw, &payload); err != nil {
			log.Warn("unparseable model output", zap.Error(err))
			c.metrics.Attempt(flow, "parse_error")
			continue
		}
		if payload.Strategy == nil || len(payload.Drafts) == 0 {
			log.Info("bundle rejected", zap.String("reason", "missing_strategy_or_drafts"))
			c.metrics.Attempt(flow, "invalid_shape")
			continue
		}
		payload.AdoptedDraft = nil
		payload.Sparring = nil
		if req.Kind == models.KindPre {
			payload.Postmortem = nil
		}
		c.metrics.Attempt(flow, "accepted")
		return Bundle{Payload: payload, Model: c.client.Model(), Attempts: i + 1}, nil
	}

	c.log.Warn("attempts exhausted, serving fallback", zap.Int("attempts", attempts))
	return fallback(c.client.Model()+FallbackTag, "exhausted", attempts), nil
}

type promptNote struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type similarSession struct {
	Kind      models.SessionKind `json:"kind"`
	InputText string             `json:"inputText"`
	CreatedAt time.Time          `json:"createdAt"`
}

// promptNotes prefers the referenced notes in reference order and falls
// back to the latest ones when none of them resolve.
func (c *Coach) promptNotes(ctx context.Context, ids []string) []promptNote {
	all, err := c.store.ListNotes(ctx, noteScanLimit)
	if err != nil {
		c.log.Warn("notes unavailable", zap.Error(err))
		return []promptNote{}
	}
	byID := make(map[string]models.Note, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}

	var picked []models.Note
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			picked = append(picked, n)
			if len(picked) == maxPromptNotes {
				break
			}
		}
	}
	if len(picked) == 0 {
		picked = all[:min(len(all), maxPromptNotes)]
	}

	out := make([]promptNote, 0, len(picked))
	for _, n := range picked {
		out = append(out, promptNote{ID: n.ID, Body: truncateRunes(n.Body, promptNoteRunes), CreatedAt: n.CreatedAt})
	}
	return out
}

func (c *Coach) similarSessions(ctx context.Context, personID string) []similarSession {
	sessions, err := c.store.ListSessions(ctx)
	if err != nil {
		c.log.Warn("sessions unavailable", zap.Error(err))
		return []similarSession{}
	}
	out := []similarSession{}
	for _, s := range sessions {
		if s.PersonID != personID {
			continue
		}
		out = append(out, similarSession{Kind: s.Kind, InputText: s.InputText, CreatedAt: s.CreatedAt})
		if len(out) == maxSimilar {
			break
		}
	}
	return out
}

func buildPrompt(req Request, person models.Person, notes []promptNote, similar []similarSession) string {
	modeLine := "PREモード: postmortemは不要。"
	if req.Kind == models.KindPost {
		modeLine = "POSTモード: postmortemを必ず含める。"
	}
	source := "参照ノートソース: 直近ノート優先"
	if n := len(req.ContextNoteIDs); n > 0 {
		source = "参照ノートソース: contextNoteIds(" + strconv.Itoa(n) + "件)優先"
	}
	goal := req.Goal
	if goal == "" {
		goal = "未指定"
	}
	return strings.Join([]string{
		"あなたはコミュニケーション助言コーチです。",
		"短く、具体的で、すぐ真似できる助言を出してください。精神論は禁止。",
		"曖昧な情報でも動ける提案を2-3案で出す。",
		"トーンは軽く圧をかけない。ただし実務的。",
		"配列は各3-5件。",
		modeLine,
		"相談モード: " + string(req.Kind),
		"今回の目的: " + goal,
		"今回の状況: " + req.InputText,
		"相手情報: " + toJSON(person),
		source,
		"参照ノート: " + toJSON(notes),
		"類似セッション: " + toJSON(similar),
	}, "\n")
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
