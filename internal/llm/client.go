// Package llm is the language model collaborator: a chat completion client
// and helpers for parsing JSON out of model output.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("language model returned an empty response")

// Options adjust a single completion.
type Options struct {
	// JSON asks the model for a JSON object.
	JSON bool
	// Temperature overrides the configured temperature when set.
	Temperature *float64
}

// Client completes a system + user prompt pair into text.
type Client interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, system, user string, opts Options) (string, error)

func (f ClientFunc) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	return f(ctx, system, user, opts)
}
