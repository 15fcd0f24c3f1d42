package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// StreamingProvider is implemented by providers that can emit tokens as
// they are generated. The returned response carries the full content.
type StreamingProvider interface {
	Provider
	Stream(ctx context.Context, req CompletionRequest, onDelta DeltaFunc) (*CompletionResponse, error)
}

// Stream uses p's streaming API when it has one. Otherwise it completes
// normally and delivers the whole answer as a single delta.
func Stream(ctx context.Context, p Provider, req CompletionRequest, onDelta DeltaFunc) (*CompletionResponse, error) {
	if sp, ok := p.(StreamingProvider); ok {
		return sp.Stream(ctx, req, onDelta)
	}
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if onDelta != nil && resp.Content != "" {
		if err := onDelta(resp.Content); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
