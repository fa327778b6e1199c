package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerateSendsSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-test", srv.URL)
	out, err := c.Generate(context.Background(), "hello", &GenOptions{
		Temperature: Temp(0.65),
		SchemaName:  "probe",
		Schema:      Object(map[string]*Schema{"ok": String()}),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "gpt-test", got["model"])
	assert.InDelta(t, 0.65, got["temperature"], 1e-9)
	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "probe", schema["name"])
	assert.Equal(t, true, schema["strict"])
	body := schema["schema"].(map[string]any)
	assert.Equal(t, false, body["additionalProperties"])
}

func TestOpenAIGenerateStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", "", srv.URL).Generate(context.Background(), "x", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 429, se.Code)
	assert.Equal(t, "slow down", se.Message)
	assert.True(t, se.Retryable())
}

func TestOpenAIGenerateEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", "", srv.URL).Generate(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAllRequired(t *testing.T) {
	full := Object(map[string]*Schema{"a": String(), "b": StringArray()})
	assert.True(t, allRequired(full))

	partial := Object(map[string]*Schema{"a": String(), "b": String()}).Optional("b")
	assert.Equal(t, []string{"a"}, partial.Required)
	assert.False(t, allRequired(partial))
}

func TestOpenAIGenerateTemperature(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		bodies = append(bodies, got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", "", srv.URL)
	_, err := c.Generate(context.Background(), "p", &GenOptions{Temperature: Temp(0)})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p", &GenOptions{})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	temp, ok := bodies[0]["temperature"]
	require.True(t, ok, "explicit zero temperature is sent")
	assert.InDelta(t, 0.0, temp, 1e-9)
	_, ok = bodies[1]["temperature"]
	assert.False(t, ok, "unset temperature is omitted")
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(&StatusError{Code: 401}))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", &StatusError{Code: 400})))
	assert.False(t, IsPermanent(&StatusError{Code: 429}))
	assert.False(t, IsPermanent(&StatusError{Code: 503}))
	assert.False(t, IsPermanent(errors.New("timeout")))
}
