package llm

import (
	"context"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

// Provider is implemented by each wire-protocol adapter (§4.7).
type Provider interface {
	Name() string
	SupportedModels() []string
	ValidateRequest(req Request) error
	Generate(ctx context.Context, req Request) (*Response, error)
	// Stream yields StreamEvents on the returned channel, closed when the
	// response completes or ctx is cancelled. Providers without native
	// streaming support wrap Generate as a single terminal event.
	Stream(ctx context.Context, req Request) <-chan StreamEvent
}

// validateCommon checks invariants shared by every provider's
// ValidateRequest: a model name and at least one message.
func validateCommon(req Request) error {
	if req.Model == "" {
		return vterrors.New(vterrors.KindInvalidParameters, "model is required")
	}
	if len(req.Messages) == 0 {
		return vterrors.New(vterrors.KindInvalidParameters, "messages must not be empty")
	}
	return nil
}

// singleEventStream wraps a non-streaming Generate call as a one-shot
// StreamEvent channel, the default §4.7 fallback for providers with no
// native streaming support.
func singleEventStream(ctx context.Context, gen func(context.Context, Request) (*Response, error), req Request) <-chan StreamEvent {
	ch := make(chan StreamEvent, 1)
	go func() {
		defer close(ch)
		resp, err := gen(ctx, req)
		if err != nil {
			ch <- StreamEvent{Err: err}
			return
		}
		ch <- StreamEvent{
			ContentDelta:   resp.Content,
			ToolCallsDelta: resp.ToolCalls,
			Usage:          &resp.Usage,
			FinishReason:   &resp.FinishReason,
		}
	}()
	return ch
}
