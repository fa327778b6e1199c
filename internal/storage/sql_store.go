package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"deepdive/internal/auth"
	"deepdive/internal/models"
)

const (
	DemoEmail = "deepdive-demo@example.com"
	DemoName  = "Deep Dive Demo"

	statusOpen   = "open"
	statusClosed = "closed"
)

// SQLStore persists every user's data in SQLite. The acting user comes from
// the request context; without one the shared demo user is used unless
// authentication is required.
type SQLStore struct {
	db           *sql.DB
	authRequired bool
	now          func() time.Time
}

func NewSQLStore(db *sql.DB, authRequired bool) *SQLStore {
	return &SQLStore{db: db, authRequired: authRequired, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) Close() error { return s.db.Close() }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// userID resolves the caller to a users row, creating it on first sight.
func (s *SQLStore) userID(ctx context.Context) (string, error) {
	u, ok := auth.UserFrom(ctx)
	if !ok {
		if s.authRequired {
			return "", ErrAuthRequired
		}
		u = auth.User{Email: DemoEmail, Name: DemoName}
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END`,
		uuid.NewString(), u.Email, u.Name, s.now()); err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}
	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, u.Email).Scan(&id); err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	return id, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// notes

func (s *SQLStore) ListNotes(ctx context.Context, limit int) ([]models.Note, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.listNotes(ctx, uid, noteLimit(limit))
}

func (s *SQLStore) listNotes(ctx context.Context, uid string, limit int) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, body, tags, created_at FROM notes
WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanNote(r scanner) (models.Note, error) {
	var (
		n    models.Note
		tags string
	)
	if err := r.Scan(&n.ID, &n.UserID, &n.Body, &tags, &n.CreatedAt); err != nil {
		return n, fmt.Errorf("scan note: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return n, nil
}

func (s *SQLStore) CreateNote(ctx context.Context, body string, tags []string) (models.Note, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.Note{}, err
	}
	n := models.Note{
		ID:        uuid.NewString(),
		UserID:    uid,
		Body:      cleanNoteBody(body),
		Tags:      cleanTags(tags),
		CreatedAt: s.now(),
	}
	raw, _ := json.Marshal(n.Tags)
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO notes (id, user_id, body, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Body, string(raw), n.CreatedAt); err != nil {
		return models.Note{}, fmt.Errorf("create note: %w", err)
	}
	return n, nil
}

// people

const personColumns = `id, user_id, name, role, relationship, type_axes, memo, created_at, updated_at`

func scanPerson(r scanner) (models.Person, error) {
	var (
		p    models.Person
		axes string
	)
	if err := r.Scan(&p.ID, &p.UserID, &p.Name, &p.Role, &p.Relationship, &axes, &p.Memo, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(axes), &p.Axes); err != nil {
		p.Axes = models.NeutralAxes
	}
	p.Axes = p.Axes.Normalize()
	return p, nil
}

func (s *SQLStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.listPeople(ctx, uid)
}

func (s *SQLStore) listPeople(ctx context.Context, uid string) ([]models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM people
WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	out := []models.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetPerson(ctx context.Context, id string) (models.Person, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.Person{}, err
	}
	return getPerson(ctx, s.db, uid, id)
}

func getPerson(ctx context.Context, q queryer, uid, id string) (models.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ? AND user_id = ?`, id, uid)
	p, err := scanPerson(row)
	if err != nil {
		return models.Person{}, notFound(err, "person "+id)
	}
	return p, nil
}

func (s *SQLStore) CreatePerson(ctx context.Context, in PersonInput) (models.Person, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.Person{}, err
	}
	return s.insertPerson(ctx, s.db, uid, in)
}

func (s *SQLStore) insertPerson(ctx context.Context, q queryer, uid string, in PersonInput) (models.Person, error) {
	now := s.now()
	p := models.Person{
		ID:           uuid.NewString(),
		UserID:       uid,
		Name:         in.Name,
		Role:         in.Role,
		Relationship: in.Relationship,
		Axes:         in.axes(),
		Memo:         in.Memo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	axes, _ := json.Marshal(p.Axes)
	if _, err := q.ExecContext(ctx, `INSERT INTO people (`+personColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Role, p.Relationship, string(axes), p.Memo, p.CreatedAt, p.UpdatedAt); err != nil {
		return models.Person{}, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

// profile

func (s *SQLStore) GetUserProfile(ctx context.Context) (*models.UserProfile, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.getProfile(ctx, uid)
}

func (s *SQLStore) getProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	var (
		p    models.UserProfile
		axes string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_id, name, type_axes, memo, created_at, updated_at FROM user_profiles WHERE user_id = ?`, uid).
		Scan(&p.ID, &p.UserID, &p.Name, &axes, &p.Memo, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if err := json.Unmarshal([]byte(axes), &p.Axes); err != nil {
		p.Axes = models.NeutralAxes
	}
	p.Axes = p.Axes.Normalize()
	return &p, nil
}

func (s *SQLStore) UpsertUserProfile(ctx context.Context, in ProfileInput) (models.UserProfile, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	now := s.now()
	axes, _ := json.Marshal(in.Axes.Normalize())
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO user_profiles (id, user_id, name, type_axes, memo, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  name = excluded.name, type_axes = excluded.type_axes, memo = excluded.memo, updated_at = excluded.updated_at`,
		uuid.NewString(), uid, in.Name, string(axes), in.Memo, now, now); err != nil {
		return models.UserProfile{}, fmt.Errorf("upsert profile: %w", err)
	}
	p, err := s.getProfile(ctx, uid)
	if err != nil {
		return models.UserProfile{}, err
	}
	if p == nil {
		return models.UserProfile{}, fmt.Errorf("upsert profile: %w", ErrNotFound)
	}
	return *p, nil
}

// sessions

const sessionColumns = `s.id, s.user_id, s.person_id, s.kind, s.goal, s.input_text, s.created_at,
  IFNULL((SELECT a.id FROM artifacts a WHERE a.session_id = s.id ORDER BY a.created_at DESC, a.rowid DESC LIMIT 1), '')`

func scanSession(r scanner) (models.CoachingSession, error) {
	var sess models.CoachingSession
	err := r.Scan(&sess.ID, &sess.UserID, &sess.PersonID, &sess.Kind, &sess.Goal, &sess.InputText, &sess.CreatedAt, &sess.ArtifactID)
	sess.ContextNoteIDs = []string{}
	return sess, err
}

func getSession(ctx context.Context, q queryer, uid, id string) (models.CoachingSession, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM coaching_sessions s WHERE s.id = ? AND s.user_id = ?`, id, uid)
	sess, err := scanSession(row)
	if err != nil {
		return models.CoachingSession{}, notFound(err, "session "+id)
	}
	ids, err := contextNoteIDs(ctx, q, id)
	if err != nil {
		return models.CoachingSession{}, err
	}
	sess.ContextNoteIDs = ids
	return sess, nil
}

func contextNoteIDs(ctx context.Context, q queryer, sessionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
SELECT note_id FROM session_context_notes WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("context notes: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// setContextNotes replaces a session's note links, skipping ids the user
// does not own.
func setContextNotes(ctx context.Context, q queryer, uid, sessionID string, noteIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM session_context_notes WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear context notes: %w", err)
	}
	for i, id := range noteIDs {
		if _, err := q.ExecContext(ctx, `
INSERT OR IGNORE INTO session_context_notes (session_id, note_id, position)
SELECT ?, id, ? FROM notes WHERE id = ? AND user_id = ?`, sessionID, i, id, uid); err != nil {
			return fmt.Errorf("link context note: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateSession(ctx context.Context, in SessionInput) (models.CoachingSession, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.CoachingSession{}, err
	}
	var sess models.CoachingSession
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		sess, err = s.insertSession(ctx, tx, uid, in)
		return err
	})
	return sess, err
}

func (s *SQLStore) insertSession(ctx context.Context, q queryer, uid string, in SessionInput) (models.CoachingSession, error) {
	if _, err := getPerson(ctx, q, uid, in.PersonID); err != nil {
		return models.CoachingSession{}, err
	}
	id := uuid.NewString()
	if _, err := q.ExecContext(ctx, `
INSERT INTO coaching_sessions (id, user_id, person_id, kind, goal, input_text, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, uid, in.PersonID, string(in.Kind), in.Goal, in.InputText, statusOpen, s.now()); err != nil {
		return models.CoachingSession{}, fmt.Errorf("create session: %w", err)
	}
	if err := setContextNotes(ctx, q, uid, id, in.ContextNoteIDs); err != nil {
		return models.CoachingSession{}, err
	}
	return getSession(ctx, q, uid, id)
}

func (s *SQLStore) ListSessions(ctx context.Context) ([]models.CoachingSession, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.listSessions(ctx, uid)
}

func (s *SQLStore) listSessions(ctx context.Context, uid string) ([]models.CoachingSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM coaching_sessions s
WHERE s.user_id = ? ORDER BY s.created_at DESC, s.rowid DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := []models.CoachingSession{}
	index := map[string]int{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		index[sess.ID] = len(out)
		out = append(out, sess)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.db.QueryContext(ctx, `
SELECT l.session_id, l.note_id FROM session_context_notes l
JOIN coaching_sessions s ON s.id = l.session_id
WHERE s.user_id = ? ORDER BY l.session_id, l.position`, uid)
	if err != nil {
		return nil, fmt.Errorf("list context notes: %w", err)
	}
	defer links.Close()
	for links.Next() {
		var sid, nid string
		if err := links.Scan(&sid, &nid); err != nil {
			return nil, err
		}
		if i, ok := index[sid]; ok {
			out[i].ContextNoteIDs = append(out[i].ContextNoteIDs, nid)
		}
	}
	return out, links.Err()
}

// artifacts

const artifactColumns = `id, session_id, type, payload, model, created_at`

func scanArtifact(r scanner) (models.Artifact, error) {
	var (
		a       models.Artifact
		payload string
	)
	if err := r.Scan(&a.ID, &a.SessionID, &a.Type, &payload, &a.Model, &a.CreatedAt); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
		return a, fmt.Errorf("decode artifact %s payload: %w", a.ID, err)
	}
	return a, nil
}

func latestArtifact(ctx context.Context, q queryer, sessionID string) (models.Artifact, error) {
	row := q.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts
WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, sessionID)
	a, err := scanArtifact(row)
	if err != nil {
		return models.Artifact{}, notFound(err, "artifact for session "+sessionID)
	}
	return a, nil
}

func (s *SQLStore) insertArtifact(ctx context.Context, q queryer, sess models.CoachingSession, payload models.ArtifactPayload, model string) (models.Artifact, error) {
	a := models.Artifact{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Type:      models.ArtifactTypeFor(sess.Kind),
		Payload:   payload,
		Model:     model,
		CreatedAt: s.now(),
	}
	raw, err := json.Marshal(a.Payload)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("encode payload: %w", err)
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, string(a.Type), string(raw), a.Model, a.CreatedAt); err != nil {
		return models.Artifact{}, fmt.Errorf("attach artifact: %w", err)
	}
	return a, nil
}

func updatePayload(ctx context.Context, q queryer, artifactID string, payload models.ArtifactPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE artifacts SET payload = ? WHERE id = ?`, string(raw), artifactID); err != nil {
		return fmt.Errorf("update artifact %s: %w", artifactID, err)
	}
	return nil
}

func (s *SQLStore) AttachArtifact(ctx context.Context, sessionID string, payload models.ArtifactPayload, model string) (models.Artifact, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.Artifact{}, err
	}
	sess, err := getSession(ctx, s.db, uid, sessionID)
	if err != nil {
		return models.Artifact{}, err
	}
	return s.insertArtifact(ctx, s.db, sess, payload, model)
}

func (s *SQLStore) GetSessionDetail(ctx context.Context, sessionID string) (SessionDetail, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return SessionDetail{}, err
	}
	sess, err := getSession(ctx, s.db, uid, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	d := SessionDetail{Session: sess, ContextNotes: []models.Note{}}

	a, err := latestArtifact(ctx, s.db, sessionID)
	switch {
	case err == nil:
		d.Artifact = &a
	case !errors.Is(err, ErrNotFound):
		return SessionDetail{}, err
	}

	p, err := getPerson(ctx, s.db, uid, sess.PersonID)
	switch {
	case err == nil:
		d.Person = &p
	case !errors.Is(err, ErrNotFound):
		return SessionDetail{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT n.id, n.user_id, n.body, n.tags, n.created_at FROM session_context_notes l
JOIN notes n ON n.id = l.note_id
WHERE l.session_id = ? ORDER BY l.position`, sessionID)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("session notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return SessionDetail{}, err
		}
		d.ContextNotes = append(d.ContextNotes, n)
	}
	return d, rows.Err()
}

func (s *SQLStore) ownedArtifact(ctx context.Context, q queryer, uid, sessionID string) (models.Artifact, error) {
	if _, err := getSession(ctx, q, uid, sessionID); err != nil {
		return models.Artifact{}, err
	}
	return latestArtifact(ctx, q, sessionID)
}

func (s *SQLStore) AdoptDraft(ctx context.Context, sessionID, tone, message string) (models.ArtifactPayload, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.ArtifactPayload{}, err
	}
	var payload models.ArtifactPayload
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := s.ownedArtifact(ctx, tx, uid, sessionID)
		if err != nil {
			return err
		}
		payload = a.Payload
		payload.AdoptedDraft = &models.AdoptedDraft{Tone: tone, Message: message, UpdatedAt: s.now()}
		return updatePayload(ctx, tx, a.ID, payload)
	})
	return payload, err
}

// sparring

func (s *SQLStore) UpsertSparringSession(ctx context.Context, in SparringUpsert) (string, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return "", err
	}
	state := in.state(s.now())
	var id string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if in.SessionID != "" {
			sess, err := getSession(ctx, tx, uid, in.SessionID)
			switch {
			case err == nil:
				id = sess.ID
				return s.updateSparring(ctx, tx, uid, sess, in, state)
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		personID := in.PersonID
		if personID == "" {
			p, err := s.placeholderPerson(ctx, tx, uid)
			if err != nil {
				return err
			}
			personID = p.ID
		}
		sess, err := s.insertSession(ctx, tx, uid, SessionInput{
			Kind:           models.KindPre,
			PersonID:       personID,
			InputText:      in.Scenario,
			Goal:           in.Goal,
			ContextNoteIDs: in.ContextNoteIDs,
		})
		if err != nil {
			return err
		}
		id = sess.ID
		_, err = s.insertArtifact(ctx, tx, sess, models.ArtifactPayload{Sparring: state}, sparringArtifactModel)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) updateSparring(ctx context.Context, tx *sql.Tx, uid string, sess models.CoachingSession, in SparringUpsert, state *models.SparringState) error {
	if _, err := tx.ExecContext(ctx, `
UPDATE coaching_sessions SET goal = ?, input_text = ? WHERE id = ?`, in.Goal, in.Scenario, sess.ID); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := setContextNotes(ctx, tx, uid, sess.ID, in.ContextNoteIDs); err != nil {
		return err
	}
	a, err := latestArtifact(ctx, tx, sess.ID)
	if errors.Is(err, ErrNotFound) {
		_, err = s.insertArtifact(ctx, tx, sess, models.ArtifactPayload{Sparring: state}, sparringArtifactModel)
		return err
	}
	if err != nil {
		return err
	}
	a.Payload.Sparring = state
	return updatePayload(ctx, tx, a.ID, a.Payload)
}

func (s *SQLStore) placeholderPerson(ctx context.Context, q queryer, uid string) (models.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people
WHERE user_id = ? AND name = ? ORDER BY created_at LIMIT 1`, uid, PlaceholderPersonName)
	p, err := scanPerson(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Person{}, fmt.Errorf("placeholder person: %w", err)
	}
	return s.insertPerson(ctx, q, uid, placeholderPersonInput())
}

func (s *SQLStore) SetSparringSummary(ctx context.Context, sessionID string, summary models.SparringSummary) (models.SparringSummary, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return models.SparringSummary{}, err
	}
	summary = stampSummary(summary, s.now())
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := s.ownedArtifact(ctx, tx, uid, sessionID)
		if errors.Is(err, ErrNotFound) {
			if _, serr := getSession(ctx, tx, uid, sessionID); serr == nil {
				return fmt.Errorf("session %s: %w", sessionID, ErrNoSparring)
			}
		}
		if err != nil {
			return err
		}
		if a.Payload.Sparring == nil {
			return fmt.Errorf("session %s: %w", sessionID, ErrNoSparring)
		}
		a.Payload.Sparring.Summary = &summary
		if err := updatePayload(ctx, tx, a.ID, a.Payload); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE coaching_sessions SET status = ? WHERE id = ?`, statusClosed, sessionID)
		return err
	})
	if err != nil {
		return models.SparringSummary{}, err
	}
	return summary, nil
}

func (s *SQLStore) ListRecentSparringSnapshots(ctx context.Context, personID string, limit int) ([]models.SparringSnapshot, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.created_at, a.payload FROM coaching_sessions s
JOIN artifacts a ON a.id = (
  SELECT id FROM artifacts WHERE session_id = s.id ORDER BY created_at DESC, rowid DESC LIMIT 1)
WHERE s.user_id = ? AND s.person_id = ? AND json_extract(a.payload, '$.sparring') IS NOT NULL
ORDER BY s.created_at DESC, s.rowid DESC LIMIT ?`, uid, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sparring: %w", err)
	}
	defer rows.Close()

	var out []models.SparringSnapshot
	for rows.Next() {
		var (
			id      string
			created time.Time
			raw     string
			payload models.ArtifactPayload
		)
		if err := rows.Scan(&id, &created, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		if snap, ok := snapshotOf(id, created, payload); ok {
			out = append(out, snap)
		}
	}
	return out, rows.Err()
}

// bulk

func (s *SQLStore) ExportAll(ctx context.Context) (Export, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return Export{}, err
	}
	ex := Export{ExportedAt: s.now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ex.Notes, err = s.listNotes(gctx, uid, ExportNoteLimit)
		return err
	})
	g.Go(func() (err error) {
		ex.People, err = s.listPeople(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		ex.Sessions, err = s.listSessions(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		ex.Artifacts, err = s.listArtifacts(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		ex.UserProfile, err = s.getProfile(gctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return Export{}, fmt.Errorf("export: %w", err)
	}
	return ex, nil
}

func (s *SQLStore) listArtifacts(ctx context.Context, uid string) ([]models.Artifact, error) {
	cols := "a." + strings.ReplaceAll(artifactColumns, ", ", ", a.")
	rows, err := s.db.QueryContext(ctx, `SELECT `+cols+` FROM artifacts a
JOIN coaching_sessions s ON s.id = a.session_id
WHERE s.user_id = ? ORDER BY a.created_at DESC, a.rowid DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	out := []models.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAll removes the acting user; every owned row cascades.
func (s *SQLStore) DeleteAll(ctx context.Context) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, uid); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}
