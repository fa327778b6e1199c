package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"deepdive/internal/metrics"
	"deepdive/internal/models"
)

// FallbackStore serves every call from primary and retries it on secondary
// when primary fails for infrastructure reasons. Domain errors (auth, not
// found, no sparring data) and cancelled contexts are returned as is.
type FallbackStore struct {
	primary   Store
	secondary Store
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewFallbackStore(primary, secondary Store, log *zap.Logger, m *metrics.Metrics) *FallbackStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackStore{primary: primary, secondary: secondary, log: log, metrics: m}
}

func shouldFallback(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrAuthRequired) &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrNoSparring)
}

func withFallback[T any](ctx context.Context, f *FallbackStore, op string, call func(Store) (T, error)) (T, error) {
	v, err := call(f.primary)
	if !shouldFallback(ctx, err) {
		return v, err
	}
	f.log.Warn("primary storage failed, using memory", zap.String("op", op), zap.Error(err))
	f.metrics.StorageFallback(op)
	return call(f.secondary)
}

func (f *FallbackStore) ListNotes(ctx context.Context, limit int) ([]models.Note, error) {
	return withFallback(ctx, f, "list_notes", func(s Store) ([]models.Note, error) {
		return s.ListNotes(ctx, limit)
	})
}

func (f *FallbackStore) CreateNote(ctx context.Context, body string, tags []string) (models.Note, error) {
	return withFallback(ctx, f, "create_note", func(s Store) (models.Note, error) {
		return s.CreateNote(ctx, body, tags)
	})
}

func (f *FallbackStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	return withFallback(ctx, f, "list_people", func(s Store) ([]models.Person, error) {
		return s.ListPeople(ctx)
	})
}

func (f *FallbackStore) GetPerson(ctx context.Context, id string) (models.Person, error) {
	return withFallback(ctx, f, "get_person", func(s Store) (models.Person, error) {
		return s.GetPerson(ctx, id)
	})
}

func (f *FallbackStore) CreatePerson(ctx context.Context, in PersonInput) (models.Person, error) {
	return withFallback(ctx, f, "create_person", func(s Store) (models.Person, error) {
		return s.CreatePerson(ctx, in)
	})
}

func (f *FallbackStore) GetUserProfile(ctx context.Context) (*models.UserProfile, error) {
	return withFallback(ctx, f, "get_profile", func(s Store) (*models.UserProfile, error) {
		return s.GetUserProfile(ctx)
	})
}

func (f *FallbackStore) UpsertUserProfile(ctx context.Context, in ProfileInput) (models.UserProfile, error) {
	return withFallback(ctx, f, "upsert_profile", func(s Store) (models.UserProfile, error) {
		return s.UpsertUserProfile(ctx, in)
	})
}

func (f *FallbackStore) CreateSession(ctx context.Context, in SessionInput) (models.CoachingSession, error) {
	return withFallback(ctx, f, "create_session", func(s Store) (models.CoachingSession, error) {
		return s.CreateSession(ctx, in)
	})
}

func (f *FallbackStore) AttachArtifact(ctx context.Context, sessionID string, payload models.ArtifactPayload, model string) (models.Artifact, error) {
	return withFallback(ctx, f, "attach_artifact", func(s Store) (models.Artifact, error) {
		return s.AttachArtifact(ctx, sessionID, payload, model)
	})
}

func (f *FallbackStore) ListSessions(ctx context.Context) ([]models.CoachingSession, error) {
	return withFallback(ctx, f, "list_sessions", func(s Store) ([]models.CoachingSession, error) {
		return s.ListSessions(ctx)
	})
}

func (f *FallbackStore) GetSessionDetail(ctx context.Context, sessionID string) (SessionDetail, error) {
	return withFallback(ctx, f, "session_detail", func(s Store) (SessionDetail, error) {
		return s.GetSessionDetail(ctx, sessionID)
	})
}

func (f *FallbackStore) AdoptDraft(ctx context.Context, sessionID, tone, message string) (models.ArtifactPayload, error) {
	return withFallback(ctx, f, "adopt_draft", func(s Store) (models.ArtifactPayload, error) {
		return s.AdoptDraft(ctx, sessionID, tone, message)
	})
}

func (f *FallbackStore) UpsertSparringSession(ctx context.Context, in SparringUpsert) (string, error) {
	return withFallback(ctx, f, "upsert_sparring", func(s Store) (string, error) {
		return s.UpsertSparringSession(ctx, in)
	})
}

func (f *FallbackStore) SetSparringSummary(ctx context.Context, sessionID string, summary models.SparringSummary) (models.SparringSummary, error) {
	return withFallback(ctx, f, "sparring_summary", func(s Store) (models.SparringSummary, error) {
		return s.SetSparringSummary(ctx, sessionID, summary)
	})
}

func (f *FallbackStore) ListRecentSparringSnapshots(ctx context.Context, personID string, limit int) ([]models.SparringSnapshot, error) {
	return withFallback(ctx, f, "recent_sparring", func(s Store) ([]models.SparringSnapshot, error) {
		return s.ListRecentSparringSnapshots(ctx, personID, limit)
	})
}

func (f *FallbackStore) ExportAll(ctx context.Context) (Export, error) {
	return withFallback(ctx, f, "export", func(s Store) (Export, error) {
		return s.ExportAll(ctx)
	})
}

func (f *FallbackStore) DeleteAll(ctx context.Context) error {
	_, err := withFallback(ctx, f, "delete_all", func(s Store) (struct{}, error) {
		return struct{}{}, s.DeleteAll(ctx)
	})
	return err
}

func (f *FallbackStore) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
