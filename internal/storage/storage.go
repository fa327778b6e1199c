package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"deepdive/internal/models"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrAuthRequired = errors.New("storage: authentication required")
	ErrNoSparring   = errors.New("storage: session has no sparring data")
)

const (
	// PlaceholderPersonName owns sparring sessions started without a person.
	PlaceholderPersonName = "なし（未登録）"
	placeholderRole       = "未設定"
	placeholderMemo       = "相談対象を未選択で実行したセッションの保存先"

	DefaultNoteLimit = 40
	ExportNoteLimit  = 500
	MaxNoteRunes     = 600
)

// Store is the persistence capability shared by the HTTP API, the VK bot and
// the generation flows.
type Store interface {
	ListNotes(ctx context.Context, limit int) ([]models.Note, error)
	CreateNote(ctx context.Context, body string, tags []string) (models.Note, error)

	ListPeople(ctx context.Context) ([]models.Person, error)
	GetPerson(ctx context.Context, id string) (models.Person, error)
	CreatePerson(ctx context.Context, in PersonInput) (models.Person, error)

	// GetUserProfile returns nil without error when no profile exists.
	GetUserProfile(ctx context.Context) (*models.UserProfile, error)
	UpsertUserProfile(ctx context.Context, in ProfileInput) (models.UserProfile, error)

	CreateSession(ctx context.Context, in SessionInput) (models.CoachingSession, error)
	AttachArtifact(ctx context.Context, sessionID string, payload models.ArtifactPayload, model string) (models.Artifact, error)
	ListSessions(ctx context.Context) ([]models.CoachingSession, error)
	GetSessionDetail(ctx context.Context, sessionID string) (SessionDetail, error)
	AdoptDraft(ctx context.Context, sessionID, tone, message string) (models.ArtifactPayload, error)

	UpsertSparringSession(ctx context.Context, in SparringUpsert) (string, error)
	SetSparringSummary(ctx context.Context, sessionID string, summary models.SparringSummary) (models.SparringSummary, error)
	ListRecentSparringSnapshots(ctx context.Context, personID string, limit int) ([]models.SparringSnapshot, error)

	ExportAll(ctx context.Context) (Export, error)
	DeleteAll(ctx context.Context) error
	Close() error
}

type PersonInput struct {
	Name         string
	Role         string
	Relationship string
	Memo         string
	// Axes defaults to models.DefaultAxes when nil.
	Axes *models.StyleAxes
}

func (in PersonInput) axes() models.StyleAxes {
	if in.Axes == nil {
		return models.DefaultAxes()
	}
	return in.Axes.Normalize()
}

type ProfileInput struct {
	Name string
	Memo string
	Axes models.StyleAxes
}

type SessionInput struct {
	Kind           models.SessionKind
	PersonID       string
	InputText      string
	Goal           string
	ContextNoteIDs []string
}

type SparringUpsert struct {
	// SessionID is empty for the first turn of a new session.
	SessionID        string
	PersonID         string
	Goal             string
	Scenario         string
	Mode             models.SparringMode
	ContextNoteIDs   []string
	Turns            []models.ConversationTurn
	AnalysisSummary  string
	Recommendations  []string
	FollowUpQuestion string
	GoalProgress     models.GoalProgress
	NextOptions      []string
	RiskNote         string
}

func (in SparringUpsert) state(now time.Time) *models.SparringState {
	turns := make([]models.ConversationTurn, len(in.Turns))
	for i, t := range in.Turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		turns[i] = t
	}
	return &models.SparringState{
		Scenario:         in.Scenario,
		Goal:             in.Goal,
		Mode:             in.Mode,
		Turns:            turns,
		AnalysisSummary:  in.AnalysisSummary,
		Recommendations:  in.Recommendations,
		FollowUpQuestion: in.FollowUpQuestion,
		GoalProgress:     in.GoalProgress,
		NextOptions:      in.NextOptions,
		RiskNote:         in.RiskNote,
	}
}

type SessionDetail struct {
	Session      models.CoachingSession `json:"session"`
	Artifact     *models.Artifact       `json:"artifact,omitempty"`
	Person       *models.Person         `json:"person,omitempty"`
	ContextNotes []models.Note          `json:"contextNotes"`
}

type Export struct {
	ExportedAt  time.Time                `json:"exportedAt"`
	Notes       []models.Note            `json:"notes"`
	People      []models.Person          `json:"people"`
	Sessions    []models.CoachingSession `json:"sessions"`
	Artifacts   []models.Artifact        `json:"artifacts"`
	UserProfile *models.UserProfile      `json:"userProfile"`
}

func snapshotOf(sessionID string, createdAt time.Time, payload models.ArtifactPayload) (models.SparringSnapshot, bool) {
	sp := payload.Sparring
	if sp == nil || len(sp.Turns) == 0 {
		return models.SparringSnapshot{}, false
	}
	return models.SparringSnapshot{
		SessionID:     sessionID,
		CreatedAt:     createdAt,
		Goal:          sp.Goal,
		Scenario:      sp.Scenario,
		LastUser:      models.LastContent(sp.Turns, models.RoleUser),
		LastAssistant: models.LastContent(sp.Turns, models.RoleAssistant),
		RiskNote:      sp.RiskNote,
	}, true
}

// cleanNoteBody trims and caps a note body.
func cleanNoteBody(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > MaxNoteRunes {
		r = r[:MaxNoteRunes]
	}
	return string(r)
}

func noteLimit(limit int) int {
	if limit <= 0 {
		return DefaultNoteLimit
	}
	return limit
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func placeholderPersonInput() PersonInput {
	axes := models.NeutralAxes
	return PersonInput{
		Name:         PlaceholderPersonName,
		Role:         placeholderRole,
		Relationship: placeholderRole,
		Memo:         placeholderMemo,
		Axes:         &axes,
	}
}
