package sparring

import (
	"context"
	"errors"

	"deepdive/internal/llm"
	"deepdive/internal/models"
)

type call struct {
	prompt string
	opts   llm.GenOptions
}

// scriptedClient replays replies in order and repeats the last one.
type scriptedClient struct {
	model   string
	replies []string
	errs    []error
	calls   []call
}

func (c *scriptedClient) Model() string { return c.model }

func (c *scriptedClient) Generate(_ context.Context, prompt string, opts *llm.GenOptions) (string, error) {
	i := len(c.calls)
	c.calls = append(c.calls, call{prompt: prompt, opts: *opts})
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if len(c.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

type fakeStore struct {
	profile   *models.UserProfile
	people    map[string]models.Person
	notes     []models.Note
	snapshots []models.SparringSnapshot
	err       error
}

func (s *fakeStore) GetUserProfile(context.Context) (*models.UserProfile, error) {
	return s.profile, s.err
}

func (s *fakeStore) GetPerson(_ context.Context, id string) (models.Person, error) {
	if s.err != nil {
		return models.Person{}, s.err
	}
	p, ok := s.people[id]
	if !ok {
		return models.Person{}, errors.New("not found")
	}
	return p, nil
}

func (s *fakeStore) ListNotes(context.Context, int) ([]models.Note, error) {
	return s.notes, s.err
}

func (s *fakeStore) ListRecentSparringSnapshots(context.Context, string, int) ([]models.SparringSnapshot, error) {
	return s.snapshots, s.err
}
