package application

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepdive/internal/coach"
	"deepdive/internal/models"
	"deepdive/internal/sparring"
	"deepdive/internal/storage"
)

type SparringService struct {
	store      storage.Store
	generator  *sparring.Generator
	summarizer *sparring.Summarizer
	log        *zap.Logger
}

func NewSparringService(store storage.Store, gen *sparring.Generator, sum *sparring.Summarizer, log *zap.Logger) *SparringService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SparringService{store: store, generator: gen, summarizer: sum, log: log.Named("sparring_service")}
}

type SparringTurnInput struct {
	SessionID string
	PersonID  string
	Goal      string
	Scenario  string
	Mode      models.SparringMode
	History   []models.ConversationTurn
}

type SparringTurnOutput struct {
	sparring.Response
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
	Fallback  bool   `json:"fallback"`
}

// cleanHistory keeps non-blank turns and treats any role other than
// assistant as the user.
func cleanHistory(in []models.ConversationTurn) []models.ConversationTurn {
	out := make([]models.ConversationTurn, 0, len(in))
	for _, t := range in {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if t.Role != models.RoleAssistant {
			t.Role = models.RoleUser
		}
		out = append(out, t)
	}
	return out
}

// Turn generates the next coaching turn, appends it to the conversation and
// persists the session.
func (s *SparringService) Turn(ctx context.Context, in SparringTurnInput) (SparringTurnOutput, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.PersonID = strings.TrimSpace(in.PersonID)
	in.Goal = strings.TrimSpace(in.Goal)
	in.Scenario = strings.TrimSpace(in.Scenario)
	history := cleanHistory(in.History)
	if in.PersonID == "" || in.Scenario == "" || len(history) == 0 {
		return SparringTurnOutput{}, fmt.Errorf("%w: personId, scenario, history are required", ErrInvalidInput)
	}

	noteIDs, err := coach.PickContextNoteIDs(ctx, s.store, in.Scenario, models.KindPre, in.PersonID, coach.DefaultContextNotes)
	if err != nil {
		s.log.Warn("context notes unavailable", zap.Error(err))
		noteIDs = nil
	}

	res := s.generator.GenerateTurn(ctx, sparring.TurnRequest{
		SessionID:      in.SessionID,
		PersonID:       in.PersonID,
		Goal:           in.Goal,
		Scenario:       in.Scenario,
		Mode:           in.Mode,
		History:        history,
		ContextNoteIDs: noteIDs,
	})
	r := res.Response

	turns := append(history, models.ConversationTurn{Role: models.RoleAssistant, Content: r.AssistantText()})
	sessionID, err := s.store.UpsertSparringSession(ctx, storage.SparringUpsert{
		SessionID:        in.SessionID,
		PersonID:         in.PersonID,
		Goal:             in.Goal,
		Scenario:         in.Scenario,
		Mode:             r.Mode,
		ContextNoteIDs:   noteIDs,
		Turns:            turns,
		AnalysisSummary:  r.AnalysisSummary,
		Recommendations:  r.Recommendations,
		FollowUpQuestion: r.FollowUpQuestion,
		GoalProgress:     r.GoalProgress,
		NextOptions:      r.NextOptions,
		RiskNote:         r.RiskNote,
	})
	if err != nil {
		return SparringTurnOutput{}, fmt.Errorf("save sparring session: %w", err)
	}
	s.log.Info("sparring turn",
		zap.String("session_id", sessionID),
		zap.String("model", res.Model),
		zap.Int("attempts", res.Attempts),
		zap.Bool("fallback", res.Fallback),
	)
	return SparringTurnOutput{Response: r, SessionID: sessionID, Model: res.Model, Fallback: res.Fallback}, nil
}

// Close summarises a sparring session and stores the summary on it.
func (s *SparringService) Close(ctx context.Context, sessionID string) (models.SparringSummary, error) {
	d, err := s.store.GetSessionDetail(ctx, sessionID)
	if err != nil {
		return models.SparringSummary{}, err
	}
	if d.Artifact == nil || d.Artifact.Payload.Sparring == nil {
		return models.SparringSummary{}, fmt.Errorf("session %s: %w", sessionID, storage.ErrNoSparring)
	}
	sp := d.Artifact.Payload.Sparring
	summary := s.summarizer.Summarize(ctx, sp.Goal, sp.Scenario, sp.Turns)
	return s.store.SetSparringSummary(ctx, sessionID, summary)
}
