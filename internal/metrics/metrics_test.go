package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())

	m.Attempt("sparring", "accepted")
	m.Attempt("sparring", "accepted")
	m.Fallback("coach", "no_model")
	m.Rejection("off_topic")
	m.StorageFallback("list_notes")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("sparring", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("coach", "no_model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("off_topic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageFallbacks.WithLabelValues("list_notes")))
}

func TestObserveLLM(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)
	m.ObserveLLM("openai", "ok", 300*time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "deepdive_llm_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Attempt("a", "b")
		m.Fallback("a", "b")
		m.Rejection("a")
		m.StorageFallback("a")
		m.ObserveLLM("a", "b", time.Second)
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNew(reg)
	assert.Panics(t, func() { MustNew(reg) })
}
