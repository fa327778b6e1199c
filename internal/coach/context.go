package coach

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"deepdive/internal/models"
)

const (
	DefaultContextNotes = 6
	minTextMatches      = 3
	recentKindSessions  = 3
	minTokenRunes       = 2
)

type ContextSource interface {
	ListNotes(ctx context.Context, limit int) ([]models.Note, error)
	ListSessions(ctx context.Context) ([]models.CoachingSession, error)
}

// PickContextNoteIDs chooses up to limit notes relevant to inputText. Notes
// are ranked by how many input tokens they contain; when too few match, the
// notes of the latest sessions with the same person and kind fill the gap.
func PickContextNoteIDs(ctx context.Context, src ContextSource, inputText string, kind models.SessionKind, personID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultContextNotes
	}
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(inputText)) {
		if utf8.RuneCountInString(t) >= minTokenRunes {
			tokens = append(tokens, t)
		}
	}

	notes, err := src.ListNotes(ctx, noteScanLimit)
	if err != nil {
		return nil, err
	}
	type scored struct {
		id    string
		score int
	}
	var hits []scored
	for _, n := range notes {
		body := strings.ToLower(n.Body)
		score := 0
		for _, t := range tokens {
			if strings.Contains(body, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{n.ID, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	byText := make([]string, 0, limit)
	for _, h := range hits[:min(len(hits), limit)] {
		byText = append(byText, h.id)
	}
	if len(byText) >= min(minTextMatches, limit) {
		return byText, nil
	}

	sessions, err := src.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := byText
	seen := make(map[string]struct{}, limit)
	for _, id := range out {
		seen[id] = struct{}{}
	}
	taken := 0
	for _, s := range sessions {
		if taken == recentKindSessions {
			break
		}
		if s.PersonID != personID || s.Kind != kind {
			continue
		}
		taken++
		for _, id := range s.ContextNoteIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out[:min(len(out), limit)], nil
}
