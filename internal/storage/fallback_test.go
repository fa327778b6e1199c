package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepdive/internal/metrics"
	"deepdive/internal/models"
)

// brokenStore fails every call with err.
type brokenStore struct {
	Store
	err error
}

func (b brokenStore) ListNotes(context.Context, int) ([]models.Note, error) { return nil, b.err }
func (b brokenStore) GetPerson(context.Context, string) (models.Person, error) {
	return models.Person{}, b.err
}
func (b brokenStore) DeleteAll(context.Context) error { return b.err }
func (b brokenStore) Close() error                    { return nil }

func TestFallbackStoreUsesSecondaryOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	mem := NewMemoryStore()
	f := NewFallbackStore(brokenStore{err: errors.New("disk I/O error")}, mem, nil, m)

	notes, err := f.ListNotes(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, notes, 1, "seeded memory note")

	require.NoError(t, f.DeleteAll(context.Background()))
	people, _ := mem.ListPeople(context.Background())
	assert.Empty(t, people)

	n, err := testutil.GatherAndCount(reg, "deepdive_storage_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per failed op")
}

func TestFallbackStorePropagatesDomainErrors(t *testing.T) {
	for _, sentinel := range []error{ErrAuthRequired, ErrNotFound, ErrNoSparring} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			f := NewFallbackStore(brokenStore{err: sentinel}, NewMemoryStore(), nil, nil)
			_, err := f.ListNotes(context.Background(), 10)
			require.ErrorIs(t, err, sentinel)
		})
	}
}

func TestFallbackStoreSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFallbackStore(brokenStore{err: context.Canceled}, NewMemoryStore(), nil, nil)
	_, err := f.GetPerson(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewWithoutPathIsMemory(t *testing.T) {
	s := New(context.Background(), Config{}, nil, nil)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
