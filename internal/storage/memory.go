package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"deepdive/internal/models"
)

const (
	DemoUserID = "demo-user"

	sparringArtifactModel = "sparring-session"
)

// MemoryStore keeps a single demo user's data in process memory. It backs
// the app when no database is configured and catches SQL failures behind
// FallbackStore.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	notes     []models.Note
	people    []models.Person
	profile   *models.UserProfile
	sessions  []models.CoachingSession
	artifacts []models.Artifact
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
	s.seed()
	return s
}

func (s *MemoryStore) clear() {
	s.notes = nil
	s.people = nil
	s.profile = nil
	s.sessions = nil
	s.artifacts = nil
}

func (s *MemoryStore) seed() {
	now := s.now()
	s.people = []models.Person{{
		ID:           uuid.NewString(),
		UserID:       DemoUserID,
		Name:         "山田さん",
		Role:         "PM",
		Relationship: "同僚",
		Axes:         models.DefaultAxes(),
		Memo:         "判断が速い。先に結論が欲しいタイプ。",
		CreatedAt:    now,
		UpdatedAt:    now,
	}}
	s.notes = []models.Note{{
		ID:        uuid.NewString(),
		UserID:    DemoUserID,
		Body:      "仕様相談で背景説明が長くなり、結論が後ろ倒しになった。",
		Tags:      []string{"会議", "伝え方"},
		CreatedAt: now,
	}}
}

func (s *MemoryStore) ListNotes(_ context.Context, limit int) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(noteLimit(limit), len(s.notes))
	out := make([]models.Note, n)
	copy(out, s.notes[:n])
	return out, nil
}

func (s *MemoryStore) CreateNote(_ context.Context, body string, tags []string) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := models.Note{
		ID:        uuid.NewString(),
		UserID:    DemoUserID,
		Body:      cleanNoteBody(body),
		Tags:      cleanTags(tags),
		CreatedAt: s.now(),
	}
	s.notes = append([]models.Note{n}, s.notes...)
	return n, nil
}

func (s *MemoryStore) ListPeople(context.Context) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Person, len(s.people))
	copy(out, s.people)
	return out, nil
}

func (s *MemoryStore) GetPerson(_ context.Context, id string) (models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.person(id); ok {
		return p, nil
	}
	return models.Person{}, fmt.Errorf("person %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) person(id string) (models.Person, bool) {
	for _, p := range s.people {
		if p.ID == id {
			return p, true
		}
	}
	return models.Person{}, false
}

func (s *MemoryStore) CreatePerson(_ context.Context, in PersonInput) (models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPerson(in), nil
}

func (s *MemoryStore) createPerson(in PersonInput) models.Person {
	now := s.now()
	p := models.Person{
		ID:           uuid.NewString(),
		UserID:       DemoUserID,
		Name:         in.Name,
		Role:         in.Role,
		Relationship: in.Relationship,
		Axes:         in.axes(),
		Memo:         in.Memo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.people = append([]models.Person{p}, s.people...)
	return p
}

func (s *MemoryStore) GetUserProfile(context.Context) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, nil
	}
	p := *s.profile
	return &p, nil
}

func (s *MemoryStore) UpsertUserProfile(_ context.Context, in ProfileInput) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.profile == nil {
		s.profile = &models.UserProfile{ID: uuid.NewString(), UserID: DemoUserID, CreatedAt: now}
	}
	s.profile.Name = in.Name
	s.profile.Memo = in.Memo
	s.profile.Axes = in.Axes.Normalize()
	s.profile.UpdatedAt = now
	return *s.profile, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, in SessionInput) (models.CoachingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.person(in.PersonID); !ok {
		return models.CoachingSession{}, fmt.Errorf("person %s: %w", in.PersonID, ErrNotFound)
	}
	return s.createSession(in), nil
}

func (s *MemoryStore) createSession(in SessionInput) models.CoachingSession {
	sess := models.CoachingSession{
		ID:             uuid.NewString(),
		UserID:         DemoUserID,
		PersonID:       in.PersonID,
		Kind:           in.Kind,
		Goal:           in.Goal,
		InputText:      in.InputText,
		CreatedAt:      s.now(),
		ContextNoteIDs: append([]string{}, in.ContextNoteIDs...),
	}
	s.sessions = append([]models.CoachingSession{sess}, s.sessions...)
	return sess
}

func (s *MemoryStore) sessionIndex(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// latestArtifact returns the index of the newest artifact of a session.
func (s *MemoryStore) latestArtifact(sessionID string) int {
	for i, a := range s.artifacts {
		if a.SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) AttachArtifact(_ context.Context, sessionID string, payload models.ArtifactPayload, model string) (models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.sessionIndex(sessionID)
	if i < 0 {
		return models.Artifact{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return s.attach(i, payload, model), nil
}

func (s *MemoryStore) attach(sessionIdx int, payload models.ArtifactPayload, model string) models.Artifact {
	sess := &s.sessions[sessionIdx]
	a := models.Artifact{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Type:      models.ArtifactTypeFor(sess.Kind),
		Payload:   payload,
		Model:     model,
		CreatedAt: s.now(),
	}
	s.artifacts = append([]models.Artifact{a}, s.artifacts...)
	sess.ArtifactID = a.ID
	return a
}

func (s *MemoryStore) ListSessions(context.Context) ([]models.CoachingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CoachingSession, len(s.sessions))
	copy(out, s.sessions)
	return out, nil
}

func (s *MemoryStore) GetSessionDetail(_ context.Context, sessionID string) (SessionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.sessionIndex(sessionID)
	if i < 0 {
		return SessionDetail{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	d := SessionDetail{Session: s.sessions[i], ContextNotes: []models.Note{}}
	if ai := s.latestArtifact(sessionID); ai >= 0 {
		a := s.artifacts[ai]
		d.Artifact = &a
	}
	if p, ok := s.person(d.Session.PersonID); ok {
		d.Person = &p
	}
	for _, id := range d.Session.ContextNoteIDs {
		for _, n := range s.notes {
			if n.ID == id {
				d.ContextNotes = append(d.ContextNotes, n)
				break
			}
		}
	}
	return d, nil
}

func (s *MemoryStore) AdoptDraft(_ context.Context, sessionID, tone, message string) (models.ArtifactPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ai := s.latestArtifact(sessionID)
	if ai < 0 {
		return models.ArtifactPayload{}, fmt.Errorf("artifact for session %s: %w", sessionID, ErrNotFound)
	}
	payload := s.artifacts[ai].Payload
	payload.AdoptedDraft = &models.AdoptedDraft{Tone: tone, Message: message, UpdatedAt: s.now()}
	s.artifacts[ai].Payload = payload
	return payload, nil
}

func (s *MemoryStore) UpsertSparringSession(_ context.Context, in SparringUpsert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := in.state(s.now())

	if in.SessionID != "" {
		if i := s.sessionIndex(in.SessionID); i >= 0 {
			sess := &s.sessions[i]
			sess.Goal = in.Goal
			sess.InputText = in.Scenario
			sess.ContextNoteIDs = append([]string{}, in.ContextNoteIDs...)
			if ai := s.latestArtifact(sess.ID); ai >= 0 {
				s.artifacts[ai].Payload.Sparring = state
			} else {
				s.attach(i, models.ArtifactPayload{Sparring: state}, sparringArtifactModel)
			}
			return sess.ID, nil
		}
	}

	personID := in.PersonID
	if personID == "" {
		personID = s.placeholderPerson().ID
	} else if _, ok := s.person(personID); !ok {
		return "", fmt.Errorf("person %s: %w", personID, ErrNotFound)
	}
	sess := s.createSession(SessionInput{
		Kind:           models.KindPre,
		PersonID:       personID,
		InputText:      in.Scenario,
		Goal:           in.Goal,
		ContextNoteIDs: in.ContextNoteIDs,
	})
	s.attach(0, models.ArtifactPayload{Sparring: state}, sparringArtifactModel)
	return sess.ID, nil
}

func (s *MemoryStore) placeholderPerson() models.Person {
	for _, p := range s.people {
		if p.Name == PlaceholderPersonName {
			return p
		}
	}
	return s.createPerson(placeholderPersonInput())
}

func (s *MemoryStore) SetSparringSummary(_ context.Context, sessionID string, summary models.SparringSummary) (models.SparringSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionIndex(sessionID) < 0 {
		return models.SparringSummary{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	ai := s.latestArtifact(sessionID)
	if ai < 0 || s.artifacts[ai].Payload.Sparring == nil {
		return models.SparringSummary{}, fmt.Errorf("session %s: %w", sessionID, ErrNoSparring)
	}
	summary = stampSummary(summary, s.now())
	sp := *s.artifacts[ai].Payload.Sparring
	sp.Summary = &summary
	s.artifacts[ai].Payload.Sparring = &sp
	return summary, nil
}

func stampSummary(summary models.SparringSummary, now time.Time) models.SparringSummary {
	if summary.GeneratedAt == nil {
		summary.GeneratedAt = &now
	}
	return summary
}

func (s *MemoryStore) ListRecentSparringSnapshots(_ context.Context, personID string, limit int) ([]models.SparringSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SparringSnapshot
	for _, sess := range s.sessions {
		if len(out) >= limit {
			break
		}
		if sess.PersonID != personID {
			continue
		}
		ai := s.latestArtifact(sess.ID)
		if ai < 0 {
			continue
		}
		if snap, ok := snapshotOf(sess.ID, sess.CreatedAt, s.artifacts[ai].Payload); ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *MemoryStore) ExportAll(context.Context) (Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex := Export{
		ExportedAt: s.now(),
		Notes:      append([]models.Note{}, s.notes[:min(len(s.notes), ExportNoteLimit)]...),
		People:     append([]models.Person{}, s.people...),
		Sessions:   append([]models.CoachingSession{}, s.sessions...),
		Artifacts:  append([]models.Artifact{}, s.artifacts...),
	}
	if s.profile != nil {
		p := *s.profile
		ex.UserProfile = &p
	}
	return ex, nil
}

func (s *MemoryStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
