package coach

import (
	"context"
	"errors"

	"deepdive/internal/llm"
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
