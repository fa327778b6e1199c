package sparring

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/models"
	"deepdive/internal/quality"
)

const (
	DefaultMaxAttempts     = 2
	DefaultBaseTemperature = 0.5
	DefaultTemperatureStep = 0.15
	DefaultHistoryWindow   = 4

	maxContextNotes   = 3
	contextNoteRunes  = 100
	noteScanLimit     = 30
	snapshotScanLimit = 3
	maxSnapshots      = 2
	maxListItems      = 3

	flow = "sparring"
)

// NeutralPersonName labels the counterpart when no person is selected.
const NeutralPersonName = "相談対象未指定"

// ContextStore is the read side of storage the generator needs.
type ContextStore interface {
	GetUserProfile(ctx context.Context) (*models.UserProfile, error)
	GetPerson(ctx context.Context, id string) (models.Person, error)
	ListNotes(ctx context.Context, limit int) ([]models.Note, error)
	ListRecentSparringSnapshots(ctx context.Context, personID string, limit int) ([]models.SparringSnapshot, error)
}

type Options struct {
	MaxAttempts     int
	BaseTemperature float64
	TemperatureStep float64
	HistoryWindow   int
	Thresholds      quality.Thresholds
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:     DefaultMaxAttempts,
		BaseTemperature: DefaultBaseTemperature,
		TemperatureStep: DefaultTemperatureStep,
		HistoryWindow:   DefaultHistoryWindow,
		Thresholds:      quality.DefaultThresholds(),
	}
}

type Generator struct {
	client  llm.Client
	store   ContextStore
	opts    Options
	gate    *quality.Gate
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewGenerator wires a generator. A nil client means no model is configured
// and every turn is served by Fallback.
func NewGenerator(client llm.Client, store ContextStore, opts Options, log *zap.Logger, m *metrics.Metrics) *Generator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.HistoryWindow < 1 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		client:  client,
		store:   store,
		opts:    opts,
		gate:    quality.NewGate(opts.Thresholds),
		log:     log.Named("sparring"),
		metrics: m,
	}
}

func neutralPerson() models.Person {
	return models.Person{Name: NeutralPersonName, Axes: models.NeutralAxes}
}

func (g *Generator) resolvePerson(ctx context.Context, id string) models.Person {
	if id == "" {
		return neutralPerson()
	}
	p, err := g.store.GetPerson(ctx, id)
	if err != nil {
		g.log.Warn("person lookup failed, using neutral counterpart", zap.String("person_id", id), zap.Error(err))
		return neutralPerson()
	}
	p.Axes = p.Axes.Normalize()
	return p
}

func (g *Generator) recentSnapshots(ctx context.Context, personID, sessionID string) []models.SparringSnapshot {
	if personID == "" {
		return nil
	}
	items, err := g.store.ListRecentSparringSnapshots(ctx, personID, snapshotScanLimit)
	if err != nil {
		g.log.Warn("recent sparring snapshots unavailable", zap.Error(err))
		return nil
	}
	out := make([]models.SparringSnapshot, 0, maxSnapshots)
	for _, s := range items {
		if s.SessionID == sessionID {
			continue
		}
		out = append(out, s)
		if len(out) == maxSnapshots {
			break
		}
	}
	return out
}

func (g *Generator) contextNotes(ctx context.Context, ids []string) []promptNote {
	if len(ids) == 0 {
		return nil
	}
	notes, err := g.store.ListNotes(ctx, noteScanLimit)
	if err != nil {
		g.log.Warn("context notes unavailable", zap.Error(err))
		return nil
	}
	byID := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	var out []promptNote
	for _, id := range ids {
		n, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, promptNote{ID: n.ID, Body: truncateRunes(n.Body, contextNoteRunes), CreatedAt: n.CreatedAt})
		if len(out) == maxContextNotes {
			break
		}
	}
	return out
}

func sanitized(s string, log *zap.Logger) string {
	res := llm.SanitizeUserInput(s)
	if res.IsSuspicious {
		log.Warn("suspicious user input", zap.Strings("warnings", res.Warnings))
	}
	return res.CleanInput
}

func refsFrom(snapshots []models.SparringSnapshot) []ContextRef {
	refs := make([]ContextRef, 0, len(snapshots))
	for _, s := range snapshots {
		refs = append(refs, ContextRef{SessionID: s.SessionID, CreatedAt: s.CreatedAt, Goal: s.Goal, Scenario: s.Scenario})
	}
	return refs
}

// GenerateTurn never fails: model errors, malformed output and rejected
// candidates all end in the deterministic fallback.
func (g *Generator) GenerateTurn(ctx context.Context, req TurnRequest) TurnResult {
	mode := req.Mode
	if !mode.Valid() {
		mode = models.ModeFacilitation
	}

	person := g.resolvePerson(ctx, req.PersonID)
	recent := g.recentSnapshots(ctx, req.PersonID, req.SessionID)
	refs := refsFrom(recent)

	lastUser := models.LastContent(req.History, models.RoleUser)
	previousAssistant := models.LastContent(req.History, models.RoleAssistant)

	fallback := func(model, reason string, attempts int) TurnResult {
		g.metrics.Fallback(flow, reason)
		resp := Fallback(FallbackInput{
			Mode:              mode,
			Goal:              req.Goal,
			Scenario:          req.Scenario,
			LastUser:          lastUser,
			PreviousAssistant: previousAssistant,
			Person:            person,
		})
		resp.ContextRefs = refs
		return TurnResult{Response: resp, Model: model, Attempts: attempts, Fallback: true}
	}

	if g.client == nil {
		return fallback(LocalModel, "no_model", 0)
	}

	profile, err := g.store.GetUserProfile(ctx)
	if err != nil {
		g.log.Warn("user profile unavailable", zap.Error(err))
		profile = nil
	}

	history := req.History
	if len(history) > g.opts.HistoryWindow {
		history = history[len(history)-g.opts.HistoryWindow:]
	}
	window := make([]models.ConversationTurn, len(history))
	for i, t := range history {
		window[i] = models.ConversationTurn{Role: t.Role, Content: sanitized(t.Content, g.log)}
	}

	base := buildTurnPrompt(promptInput{
		Mode:     mode,
		Goal:     req.Goal,
		Scenario: sanitized(req.Scenario, g.log),
		Person:   person,
		Profile:  profile,
		Notes:    g.contextNotes(ctx, req.ContextNoteIDs),
		Recent:   recent,
		LastUser: sanitized(lastUser, g.log),
		History:  window,
	})

	for i := 0; i < g.opts.MaxAttempts; i++ {
		temperature := g.opts.BaseTemperature + float64(i)*g.opts.TemperatureStep
		log := g.log.With(zap.Int("attempt", i+1), zap.Float64("temperature", temperature))

		raw, err := g.client.Generate(ctx, attemptPrompt(base, i), &llm.GenOptions{
			Temperature: llm.Temp(temperature),
			SchemaName:  SchemaName,
			Schema:      responseSchema,
		})
		if err != nil {
			log.Warn("model call failed", zap.Error(err))
			g.metrics.Attempt(flow, "call_error")
			if llm.IsPermanent(err) {
				return fallback(g.client.Model()+FallbackTag, "provider_error", i+1)
			}
			continue
		}

		var cand Response
		if err := llm.DecodeObject(raw, &cand); err != nil {
			log.Warn("unparseable model output", zap.Error(err))
			g.metrics.Attempt(flow, "parse_error")
			continue
		}
		cand.Mode = mode

		if err := ValidateShape(cand); err != nil {
			var se *ShapeError
			reason := "shape"
			if errors.As(err, &se) {
				reason = se.Rule
			}
			log.Info("candidate rejected", zap.String("reason", reason))
			g.metrics.Attempt(flow, "invalid_shape")
			g.metrics.Rejection(reason)
			continue
		}

		verdict := g.gate.Evaluate(cand.CombinedText(), lastUser, previousAssistant)
		if !verdict.Pass {
			log.Info("candidate rejected",
				zap.String("reason", verdict.Reason),
				zap.Float64("relevance", verdict.Relevance),
				zap.Float64("repetition", verdict.Repetition),
			)
			g.metrics.Attempt(flow, "rejected_quality")
			g.metrics.Rejection(verdict.Reason)
			continue
		}

		fit := quality.EvaluatePersonFit(quality.FitInput{
			Options:  cand.NextOptions,
			Combined: cand.PersonFitText(),
		}, person.Axes)
		if !fit.Pass {
			log.Info("candidate rejected",
				zap.String("reason", "person_fit"),
				zap.Int("matched", fit.Matched),
				zap.Strings("failed", fit.Failed),
			)
			g.metrics.Attempt(flow, "rejected_fit")
			g.metrics.Rejection("person_fit")
			continue
		}

		g.metrics.Attempt(flow, "accepted")
		cand.Recommendations = capList(cand.Recommendations, maxListItems)
		cand.NextOptions = capList(cand.NextOptions, maxListItems)
		cand.ContextRefs = refs
		return TurnResult{Response: cand, Model: g.client.Model(), Attempts: i + 1}
	}

	g.log.Warn("attempts exhausted, serving fallback", zap.Int("attempts", g.opts.MaxAttempts))
	return fallback(g.client.Model()+FallbackTag, "exhausted", g.opts.MaxAttempts)
}
