package application

import (
	"context"
	"fmt"
	"strings"

	"deepdive/internal/coach"
	"deepdive/internal/models"
	"deepdive/internal/storage"
)

const unnamedPerson = "相手未設定"

// SessionService covers notes, people, the user profile and the stored
// sessions: everything that does not generate a new coaching turn.
type SessionService struct {
	store    storage.Store
	rewriter *coach.Rewriter
}

func NewSessionService(store storage.Store, rw *coach.Rewriter) *SessionService {
	return &SessionService{store: store, rewriter: rw}
}

func (s *SessionService) ListNotes(ctx context.Context, limit int) ([]models.Note, error) {
	return s.store.ListNotes(ctx, limit)
}

func (s *SessionService) CreateNote(ctx context.Context, body string, tags []string) (models.Note, error) {
	if strings.TrimSpace(body) == "" {
		return models.Note{}, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	return s.store.CreateNote(ctx, body, tags)
}

func (s *SessionService) ListPeople(ctx context.Context) ([]models.Person, error) {
	return s.store.ListPeople(ctx)
}

type PersonInput struct {
	Name         string
	Role         string
	Relationship string
	Memo         string
	PresetID     string
	Axes         *models.StyleAxes
}

// CreatePerson registers a person. Explicit axes win over a preset; with
// neither the default preset applies.
func (s *SessionService) CreatePerson(ctx context.Context, in PersonInput) (models.Person, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Person{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	axes := in.Axes
	if axes == nil && in.PresetID != "" {
		p, ok := models.FindPreset(in.PresetID)
		if !ok {
			return models.Person{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidInput, in.PresetID)
		}
		axes = &p.Axes
	}
	return s.store.CreatePerson(ctx, storage.PersonInput{
		Name:         name,
		Role:         strings.TrimSpace(in.Role),
		Relationship: strings.TrimSpace(in.Relationship),
		Memo:         strings.TrimSpace(in.Memo),
		Axes:         axes,
	})
}

func (s *SessionService) Presets() []models.PersonPreset {
	return models.Presets()
}

func (s *SessionService) Profile(ctx context.Context) (*models.UserProfile, error) {
	return s.store.GetUserProfile(ctx)
}

func (s *SessionService) UpsertProfile(ctx context.Context, name, memo string, axes models.StyleAxes) (models.UserProfile, error) {
	return s.store.UpsertUserProfile(ctx, storage.ProfileInput{
		Name: strings.TrimSpace(name),
		Memo: strings.TrimSpace(memo),
		Axes: axes.Normalize(),
	})
}

func (s *SessionService) ListSessions(ctx context.Context) ([]models.CoachingSession, error) {
	return s.store.ListSessions(ctx)
}

func (s *SessionService) Detail(ctx context.Context, id string) (storage.SessionDetail, error) {
	return s.store.GetSessionDetail(ctx, id)
}

func (s *SessionService) AdoptDraft(ctx context.Context, sessionID, tone, message string) (*models.AdoptedDraft, error) {
	tone = strings.TrimSpace(tone)
	message = strings.TrimSpace(message)
	if sessionID == "" || tone == "" || message == "" {
		return nil, fmt.Errorf("%w: tone and message are required", ErrInvalidInput)
	}
	payload, err := s.store.AdoptDraft(ctx, sessionID, tone, message)
	if err != nil {
		return nil, err
	}
	return payload.AdoptedDraft, nil
}

// SaveAdoptedNote turns the adopted draft of a session into a note.
func (s *SessionService) SaveAdoptedNote(ctx context.Context, sessionID string) (models.Note, error) {
	d, err := s.store.GetSessionDetail(ctx, sessionID)
	if err != nil {
		return models.Note{}, err
	}
	if d.Artifact == nil || d.Artifact.Payload.AdoptedDraft == nil || d.Artifact.Payload.AdoptedDraft.Message == "" {
		return models.Note{}, fmt.Errorf("session %s: %w", sessionID, ErrNoAdoptedDraft)
	}
	adopted := d.Artifact.Payload.AdoptedDraft
	name := unnamedPerson
	if d.Person != nil {
		name = d.Person.Name
	}
	body := "【送信メモ / " + name + " / " + adopted.Tone + "】\n" + adopted.Message
	return s.store.CreateNote(ctx, body, nil)
}

func (s *SessionService) Rewrite(ctx context.Context, message string, tone coach.Tone) (string, error) {
	out, err := s.rewriter.Rewrite(ctx, message, tone)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return out, nil
}

func (s *SessionService) Export(ctx context.Context) (storage.Export, error) {
	return s.store.ExportAll(ctx)
}

// Reset deletes every record owned by the caller.
func (s *SessionService) Reset(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}
