package transport

import (
	"context"
	"fmt"

	"github.com/lapworks/lapstream-go/internal/core/domain"
)

// Transport is an established bidirectional frame connection.
type Transport interface {
	// ReadFrame blocks until the next frame arrives or the
	// connection fails.
	ReadFrame() (domain.Frame, error)

	// WriteFrame sends a frame. Safe for concurrent use.
	WriteFrame(frame domain.Frame) error

	// Close tears down the connection. Idempotent.
	Close() error

	// Name returns the transport name, e.g. "websocket".
	Name() string
}

// Dialer establishes a Transport to an endpoint.
type Dialer interface {
	// Name returns the name used in transport preference lists.
	Name() string

	// Dial connects to the endpoint. The context bounds the
	// handshake only, not the lifetime of the Transport.
	Dial(ctx context.Context, endpoint string) (Transport, error)
}

// Builtin returns the dialers compiled into the client, keyed by name.
func Builtin() map[string]Dialer {
	return map[string]Dialer{
		"websocket": NewWebSocketDialer(),
	}
}

// Order resolves a transport preference list against the available
// dialers. Unknown names are skipped. An empty preference list means
// every available dialer, in no particular order.
func Order(prefs []string, available map[string]Dialer) ([]Dialer, error) {
	if len(prefs) == 0 {
		dialers := make([]Dialer, 0, len(available))
		for _, d := range available {
			dialers = append(dialers, d)
		}
		if len(dialers) == 0 {
			return nil, domain.ErrConnNoTransport
		}
		return dialers, nil
	}

	dialers := make([]Dialer, 0, len(prefs))
	for _, name := range prefs {
		if d, ok := available[name]; ok {
			dialers = append(dialers, d)
		}
	}
	if len(dialers) == 0 {
		return nil, domain.ErrConnNoTransport.WithDetails(
			fmt.Sprintf("preference %v matched no dialer", prefs))
	}
	return dialers, nil
}
