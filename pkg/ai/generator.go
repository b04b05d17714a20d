// Package ai wraps a remote language model with the prompt templates,
// post-processing and quality gates used by the dashboard's analysis feature.
package ai

import (
	"context"
	"errors"
	"time"
)

var ErrGeneratorUnavailable = errors.New("ai generator unavailable")

// Request is a single completion request.
type Request struct {
	Prompt      string
	Language    string
	MaxTokens   int
	Temperature float64
}

// Completion is the raw model output before post-processing.
type Completion struct {
	Text          string
	Model         string
	InferenceTime time.Duration
}

// Generator produces raw completions.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (Completion, error)
	Health(ctx context.Context) error
}

// Unavailable is the generator used when no backend is configured. Every
// call fails, which routes the engine to its fallback answers.
type Unavailable struct{}

func (Unavailable) Name() string { return "none" }

func (Unavailable) Generate(context.Context, Request) (Completion, error) {
	return Completion{}, ErrGeneratorUnavailable
}

func (Unavailable) Health(context.Context) error { return ErrGeneratorUnavailable }
