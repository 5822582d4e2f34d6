package ai

import (
	"context"
	"time"
)

// Client sends one prompt to a language model and returns its raw text.
// Implementations make a single attempt and honour ctx for cancellation.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every Complete call. A non-positive d returns c as is.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

func (t *timeoutClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, prompt)
}
