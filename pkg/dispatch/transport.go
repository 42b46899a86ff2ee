package dispatch

import (
	"context"

	"github.com/goliatone/go-mailmerge/pkg/message"
)

// Transport delivers rendered messages through one provider.
type Transport interface {
	// Name identifies the transport in the registry and in config.
	Name() string
	// Verify confirms the provider credential is usable.
	Verify(ctx context.Context) error
	// Send delivers msgs and returns one Result per message, in order. A
	// returned error means the whole call failed and no result is reliable.
	Send(ctx context.Context, msgs []message.Message) ([]Result, error)
}

// Result is the provider response for a single message.
type Result struct {
	MessageID string
	Err       error
}
