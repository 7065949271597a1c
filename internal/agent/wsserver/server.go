package wsserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
	"github.com/lapworks/lapstream-go/internal/telemetry/metric"
	"github.com/lapworks/lapstream-go/pkg/eventbus"
)

// Default fanout configuration values.
const (
	DefaultAddr       = "127.0.0.1:8000"
	DefaultRateLimit  = 60.0
	DefaultRateBurst  = 120
	DefaultSendBuffer = 64
)

// writeTimeout bounds one frame write to a consumer.
const writeTimeout = 10 * time.Second

// broadcastEvents are the channels fanned out to consumers.
var broadcastEvents = []string{
	domain.EventTelemetryData,
	domain.EventSessionUpdate,
	domain.EventLapCompleted,
	domain.EventBestLap,
}

// Config holds the fanout server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `koanf:"addr"`

	// RateLimit is the per-consumer frame rate (frames per second).
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the per-consumer burst allowance.
	RateBurst int `koanf:"rate_burst"`

	// SendBuffer is the per-consumer queue depth; overflow drops
	// frames.
	SendBuffer int `koanf:"send_buffer"`
}

// DefaultConfig returns the default fanout configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       DefaultAddr,
		RateLimit:  DefaultRateLimit,
		RateBurst:  DefaultRateBurst,
		SendBuffer: DefaultSendBuffer,
	}
}

// Verify validates the configuration.
func (c *Config) Verify() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.RateLimit <= 0 {
		return errors.New("rate_limit must be positive")
	}
	if c.SendBuffer < 1 {
		return errors.New("send_buffer must be at least 1")
	}
	return nil
}

// Server broadcasts bus events to WebSocket consumers.
type Server struct {
	cfg     Config
	log     logger.Logger
	metrics *metric.Registry

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*consumer]struct{}
	closed  bool

	cancels []func()
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a fanout server and subscribes it to the broadcast
// events on the bus. Close releases the subscriptions.
func New(cfg Config, bus *eventbus.Bus, opts ...Option) (*Server, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     logger.Default(),
		clients: make(map[*consumer]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, event := range broadcastEvents {
		ev := event
		s.cancels = append(s.cancels, bus.Subscribe(ev, func(payload any) {
			s.broadcast(ev, payload)
		}))
	}
	return s, nil
}

// Register mounts the WebSocket endpoint on a mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}

// ClientCount returns the number of attached consumers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close detaches from the bus and disconnects every consumer.
func (s *Server) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}

	s.mu.Lock()
	s.closed = true
	clients := make([]*consumer, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

// broadcast encodes one event and queues it for every subscribed
// consumer.
func (s *Server) broadcast(event string, payload any) {
	frame, err := domain.NewFrame(event, payload)
	if err != nil {
		s.log.Error("broadcast encode failed", "event", event, "error", err)
		return
	}

	s.mu.Lock()
	clients := make([]*consumer, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range clients {
		if !c.wants(event) {
			continue
		}
		select {
		case c.send <- frame:
			sent++
		default:
			if s.metrics != nil {
				s.metrics.FramesDropped.Inc()
			}
		}
	}
	if s.metrics != nil && sent > 0 {
		s.metrics.FramesSent.WithLabelValues(event).Add(float64(sent))
	}
}

// handleWS upgrades a consumer connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &consumer{
		srv:     s,
		conn:    conn,
		send:    make(chan domain.Frame, s.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst),
		muted:   make(map[string]bool),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.FanoutClients.Set(float64(count))
	}
	s.log.Info("consumer attached", "remote", r.RemoteAddr, "clients", count)

	go c.writeLoop()
	go c.readLoop()
}

// detach removes a consumer after its connection ends.
func (s *Server) detach(c *consumer) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	count := len(s.clients)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.FanoutClients.Set(float64(count))
	}
	s.log.Info("consumer detached", "clients", count)
}

// consumer is one attached WebSocket client.
type consumer struct {
	srv     *Server
	conn    *websocket.Conn
	send    chan domain.Frame
	limiter *rate.Limiter

	mu    sync.Mutex
	muted map[string]bool

	once sync.Once
	done chan struct{}
}

// wants reports whether the consumer receives a channel. Consumers
// receive everything until they unsubscribe.
func (c *consumer) wants(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.muted[event]
}

func (c *consumer) setMuted(event string, muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if muted {
		c.muted[event] = true
	} else {
		delete(c.muted, event)
	}
}

func (c *consumer) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
		c.srv.detach(c)
	})
}

// writeLoop drains the send queue, enforcing the rate limit by
// dropping frames that exceed it.
func (c *consumer) writeLoop() {
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if !c.limiter.Allow() {
				if c.srv.metrics != nil {
					c.srv.metrics.FramesDropped.Inc()
				}
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

// readLoop consumes command frames until the connection drops.
func (c *consumer) readLoop() {
	defer c.close()
	for {
		var frame domain.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		c.handleCommand(frame)
	}
}

// handleCommand applies a subscribe or unsubscribe request. Unknown
// commands are ignored.
func (c *consumer) handleCommand(frame domain.Frame) {
	switch frame.Event {
	case domain.EventSubscribe, domain.EventUnsubscribe:
	default:
		c.srv.log.Debug("ignoring unknown command", "event", frame.Event)
		return
	}

	var req domain.ChannelRequest
	if err := json.Unmarshal(frame.Payload, &req); err != nil || req.Channel == "" {
		c.srv.log.Debug("malformed channel request", "event", frame.Event)
		return
	}
	c.setMuted(req.Channel, frame.Event == domain.EventUnsubscribe)
}
