package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lapworks/lapstream-go/internal/client/transport"
	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
	"github.com/lapworks/lapstream-go/internal/telemetry/metric"
	"github.com/lapworks/lapstream-go/pkg/eventbus"
	"github.com/lapworks/lapstream-go/pkg/ringbuf"
)

// dialTimeout bounds a single connection attempt.
const dialTimeout = 10 * time.Second

// Client is a LapStream live-connection client.
type Client struct {
	cfg     Config
	log     logger.Logger
	bus     *eventbus.Bus
	buffer  *ringbuf.Ring[domain.Sample]
	metrics *metric.Registry
	dialers []transport.Dialer

	mu       sync.Mutex
	state    State
	conn     transport.Transport
	attempts int
	retry    *time.Timer
	gen      uint64
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBus sets the event bus used for dispatch. Callers sharing a bus
// across components pass their own; otherwise the client creates one.
func WithBus(bus *eventbus.Bus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithDialers overrides the transport dialers resolved from the
// configured preference list.
func WithDialers(dialers ...transport.Dialer) Option {
	return func(c *Client) { c.dialers = dialers }
}

// New creates a client. The configuration is verified and the
// transport preference list resolved before any connection is made.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		log:    logger.Default(),
		buffer: ringbuf.New[domain.Sample](cfg.BufferCapacity),
		state:  Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = eventbus.New()
	}
	if c.dialers == nil {
		dialers, err := transport.Order(cfg.Transports, transport.Builtin())
		if err != nil {
			return nil, err
		}
		c.dialers = dialers
	}
	return c, nil
}

// Connect starts a connection attempt. It returns immediately; the
// outcome is reported through "connected" and "connection_error"
// events. Calling Connect while already connecting or connected is a
// no-op. Calling it while the reconnection policy is active is an
// error; Disconnect first to abort the policy.
func (c *Client) Connect() error {
	c.mu.Lock()
	switch c.state {
	case Connecting, Connected:
		c.mu.Unlock()
		return nil
	case Reconnecting:
		c.mu.Unlock()
		return domain.ErrConnInvalidState.WithDetails("reconnection in progress")
	}
	c.state = Connecting
	c.attempts = 0
	gen := c.gen
	c.mu.Unlock()

	c.log.Info("connecting", "endpoint", c.cfg.EndpointURL)
	go c.dial(gen)
	return nil
}

// Disconnect closes the connection and cancels any pending
// reconnection. It is valid in every state and idempotent; only a
// transition out of Connected emits a "disconnected" event.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	wasConnected := c.state == Connected
	c.state = Disconnected
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		c.log.Info("disconnected", "reason", string(domain.ReasonClientDisconnect))
		c.bus.Dispatch(domain.EventDisconnected, domain.DisconnectedEvent{
			Reason: domain.ReasonClientDisconnect,
		})
	}
	return nil
}

// GetState returns the current connection state.
func (c *Client) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers a handler for a named event and returns a cancel
// function that removes exactly this registration.
func (c *Client) On(event string, handler eventbus.Handler) func() {
	return c.bus.Subscribe(event, handler)
}

// Latest returns the most recent buffered sample.
func (c *Client) Latest() (domain.Sample, bool) {
	return c.buffer.Latest()
}

// Snapshot returns the buffered samples, oldest first.
func (c *Client) Snapshot() []domain.Sample {
	return c.buffer.Snapshot()
}

// ClearBuffer discards all buffered samples.
func (c *Client) ClearBuffer() {
	c.buffer.Clear()
	if c.metrics != nil {
		c.metrics.BufferDepth.Set(0)
	}
}

// dial tries each configured transport in preference order. A stale
// generation means Disconnect was called while the attempt was in
// flight; the result is discarded.
func (c *Client) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	var (
		conn transport.Transport
		err  error
	)
	for _, d := range c.dialers {
		conn, err = d.Dial(ctx, c.cfg.EndpointURL)
		if err == nil {
			break
		}
		c.log.Debug("transport dial failed", "transport", d.Name(), "error", err)
	}
	if conn == nil {
		c.dialFailed(gen, err)
		return
	}

	c.mu.Lock()
	if c.gen != gen || (c.state != Connecting && c.state != Reconnecting) {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	prev := c.attempts
	c.attempts = 0
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()

	c.log.Info("connected", "transport", conn.Name(), "endpoint", c.cfg.EndpointURL)
	c.bus.Dispatch(domain.EventConnected, nil)
	if prev > 0 {
		if c.metrics != nil {
			c.metrics.Reconnections.Inc()
		}
		c.bus.Dispatch(domain.EventReconnected, domain.ReconnectedEvent{Attempts: prev})
	}

	go c.readLoop(gen, conn)
}

// dialFailed records a failed attempt and either schedules the next
// one after the fixed delay or gives up.
func (c *Client) dialFailed(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen || (c.state != Connecting && c.state != Reconnecting) {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	exhausted := attempt >= c.cfg.MaxReconnectAttempts
	if exhausted {
		c.state = Failed
		c.retry = nil
	} else {
		c.state = Reconnecting
		c.retry = time.AfterFunc(c.cfg.ReconnectDelay, func() { c.retryFire(gen) })
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ReconnectAttempts.Inc()
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.log.Warn("connection attempt failed", "attempt", attempt, "error", msg)
	c.bus.Dispatch(domain.EventConnectionError, domain.ConnectionErrorEvent{
		Attempt: attempt,
		Message: msg,
	})
	if exhausted {
		c.log.Error("reconnection attempts exhausted", "attempts", attempt)
		c.bus.Dispatch(domain.EventExhausted, domain.ExhaustedEvent{Attempts: attempt})
	}
}

// retryFire runs when the reconnect delay elapses.
func (c *Client) retryFire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != Reconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.mu.Unlock()
	c.dial(gen)
}

// readLoop pumps inbound frames until the transport fails.
func (c *Client) readLoop(gen uint64, conn transport.Transport) {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			c.connectionLost(gen, conn, err)
			return
		}
		c.handleFrame(frame)
	}
}

// handleFrame buffers an inbound frame and dispatches it to
// subscribers as a timestamped sample.
func (c *Client) handleFrame(frame domain.Frame) {
	sample := domain.NewSample(frame.Event, frame.Payload, time.Now())
	c.buffer.Append(sample)
	if c.metrics != nil {
		c.metrics.FramesReceived.WithLabelValues(frame.Event).Inc()
		c.metrics.BufferDepth.Set(float64(c.buffer.Len()))
	}
	c.bus.Dispatch(frame.Event, sample)
}

// connectionLost handles an unexpected transport failure while
// connected. Caller-initiated disconnects never reach here because
// Disconnect bumps the generation first.
func (c *Client) connectionLost(gen uint64, conn transport.Transport, err error) {
	c.mu.Lock()
	if c.gen != gen || c.conn != conn || c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = Reconnecting
	c.mu.Unlock()

	_ = conn.Close()

	reason := lossReason(err)
	c.log.Warn("connection lost", "reason", string(reason), "error", err)
	c.bus.Dispatch(domain.EventDisconnected, domain.DisconnectedEvent{Reason: reason})

	c.dial(gen)
}

// lossReason classifies a read failure.
func lossReason(err error) domain.DisconnectReason {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return domain.ReasonTransportClose
	}
	return domain.ReasonTransportError
}
