package application

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepdive/internal/coach"
	"deepdive/internal/models"
	"deepdive/internal/storage"
)

type CoachingService struct {
	store storage.Store
	coach *coach.Coach
	log   *zap.Logger
}

func NewCoachingService(store storage.Store, c *coach.Coach, log *zap.Logger) *CoachingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CoachingService{store: store, coach: c, log: log.Named("coaching_service")}
}

type CoachInput struct {
	Kind      models.SessionKind
	PersonID  string
	InputText string
	Goal      string
}

type CoachOutput struct {
	SessionID  string                 `json:"sessionId"`
	ArtifactID string                 `json:"artifactId"`
	Payload    models.ArtifactPayload `json:"payload"`
	Model      string                 `json:"model"`
}

// Run opens a coaching session and attaches a generated bundle to it.
func (s *CoachingService) Run(ctx context.Context, in CoachInput) (CoachOutput, error) {
	if in.Kind != models.KindPost {
		in.Kind = models.KindPre
	}
	in.PersonID = strings.TrimSpace(in.PersonID)
	in.InputText = strings.TrimSpace(in.InputText)
	in.Goal = strings.TrimSpace(in.Goal)
	if in.PersonID == "" || in.InputText == "" {
		return CoachOutput{}, fmt.Errorf("%w: personId and inputText are required", ErrInvalidInput)
	}

	noteIDs, err := coach.PickContextNoteIDs(ctx, s.store, in.InputText, in.Kind, in.PersonID, coach.DefaultContextNotes)
	if err != nil {
		s.log.Warn("context notes unavailable", zap.Error(err))
		noteIDs = nil
	}
	sess, err := s.store.CreateSession(ctx, storage.SessionInput{
		Kind:           in.Kind,
		PersonID:       in.PersonID,
		InputText:      in.InputText,
		Goal:           in.Goal,
		ContextNoteIDs: noteIDs,
	})
	if err != nil {
		return CoachOutput{}, fmt.Errorf("create session: %w", err)
	}

	bundle, err := s.coach.GenerateBundle(ctx, coach.Request{
		Kind:           in.Kind,
		PersonID:       in.PersonID,
		InputText:      in.InputText,
		Goal:           in.Goal,
		ContextNoteIDs: noteIDs,
	})
	if err != nil {
		return CoachOutput{}, err
	}
	a, err := s.store.AttachArtifact(ctx, sess.ID, bundle.Payload, bundle.Model)
	if err != nil {
		return CoachOutput{}, fmt.Errorf("attach artifact: %w", err)
	}
	s.log.Info("coaching bundle",
		zap.String("session_id", sess.ID),
		zap.String("model", bundle.Model),
		zap.Bool("fallback", bundle.Fallback),
	)
	return CoachOutput{SessionID: sess.ID, ArtifactID: a.ID, Payload: a.Payload, Model: a.Model}, nil
}
