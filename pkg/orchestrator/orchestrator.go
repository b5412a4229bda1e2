// Package orchestrator issues model requests and exposes their output as an
// ordered, finite event stream.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/history"
	"github.com/papercomputeco/parley/pkg/llm"
)

// Backend is a model provider. Stream opens one request; the returned reader
// yields text-delta, reasoning-delta and step-boundary events and io.EOF once
// the model has finished.
type Backend interface {
	Stream(ctx context.Context, req *llm.ChatRequest) (llm.EventReader, error)
}

// Orchestrator opens one backend request per invocation. It does not enforce
// one stream per conversation; callers must not submit while a stream is in
// flight.
type Orchestrator struct {
	backend Backend
	system  string
	options *llm.Options
	logger  *zap.Logger
}

// New creates an Orchestrator that sends systemInstruction with every request.
func New(backend Backend, systemInstruction string, options *llm.Options, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		system:  systemInstruction,
		options: options,
		logger:  logger,
	}
}

// Open starts a stream for the assembled messages. Backend failures, including
// a failure to open the request, surface as a terminal error event.
func (o *Orchestrator) Open(ctx context.Context, modelID string, messages []llm.Message) *Stream {
	req := &llm.ChatRequest{
		Model:    modelID,
		System:   o.system,
		Messages: messages,
		Options:  o.options,
	}

	o.logger.Debug("opening model stream",
		zap.String("model", modelID),
		zap.Int("message_count", len(messages)),
	)

	return newStream(ctx, o.backend, req, o.logger)
}

// Regenerate reissues a request for the working history without its most
// recent assistant turn. It is a new invocation, not a retry of an earlier
// stream.
func (o *Orchestrator) Regenerate(ctx context.Context, modelID string, turns []llm.Turn) *Stream {
	return o.Open(ctx, modelID, history.Assemble(turns, nil, history.ModeRegenerate, o.logger))
}
