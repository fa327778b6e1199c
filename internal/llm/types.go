package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Client is a single-shot text generator. Implementations must honour ctx
// cancellation and return an error rather than an empty string on failure.
type Client interface {
	Generate(ctx context.Context, prompt string, opts *GenOptions) (string, error)
	Model() string
}

type GenOptions struct {
	Model       string
	// Temperature is sent only when set; zero is a valid value.
	Temperature *float64
	MaxTokens   int
	System      string

	// SchemaName and Schema request structured JSON output when set.
	SchemaName string
	Schema     *Schema
}

// Schema is a provider-neutral subset of JSON Schema.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Enum        []string
	Required    []string
}

const (
	TypeObject = "object"
	TypeArray  = "array"
	TypeString = "string"
)

// Temp returns a pointer for GenOptions.Temperature.
func Temp(v float64) *float64 { return &v }

func String() *Schema { return &Schema{Type: TypeString} }

func StringArray() *Schema { return &Schema{Type: TypeArray, Items: String()} }

func ArrayOf(items *Schema) *Schema { return &Schema{Type: TypeArray, Items: items} }

func Enum(values ...string) *Schema { return &Schema{Type: TypeString, Enum: values} }

// Object builds an object schema whose properties are all required.
func Object(props map[string]*Schema) *Schema {
	s := &Schema{Type: TypeObject, Properties: props}
	for name := range props {
		s.Required = append(s.Required, name)
	}
	sort.Strings(s.Required)
	return s
}

// Optional drops names from the required list of an object schema.
func (s *Schema) Optional(names ...string) *Schema {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	kept := s.Required[:0]
	for _, r := range s.Required {
		if _, ok := skip[r]; !ok {
			kept = append(kept, r)
		}
	}
	s.Required = kept
	return s
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Code, e.Message)
}

// Retryable reports whether the provider is likely to succeed on a retry.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// IsPermanent reports whether err is a provider rejection that a retry with
// the same credentials and request shape cannot fix.
func IsPermanent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && !se.Retryable()
}

var ErrEmptyResponse = errors.New("llm: empty response")
