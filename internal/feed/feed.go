package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
	"github.com/lapworks/lapstream-go/internal/telemetry/metric"
)

// Default feed configuration values.
const (
	DefaultReceivePort       = 33740
	DefaultHeartbeatPort     = 33739
	DefaultHeartbeatInterval = 10 * time.Second
)

// heartbeatByte keeps the simulator broadcasting.
const heartbeatByte = 'A'

// Config holds the intake feed configuration.
type Config struct {
	// ConsoleAddr is the simulator's IP address.
	ConsoleAddr string `koanf:"console_addr"`

	// ReceivePort is the local UDP port datagrams arrive on.
	ReceivePort int `koanf:"receive_port"`

	// HeartbeatPort is the simulator port the heartbeat is sent to.
	HeartbeatPort int `koanf:"heartbeat_port"`

	// HeartbeatInterval is the pause between heartbeats.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// DefaultConfig returns the default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReceivePort:       DefaultReceivePort,
		HeartbeatPort:     DefaultHeartbeatPort,
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// Verify validates the configuration.
func (c *Config) Verify() error {
	if c.ConsoleAddr == "" {
		return errors.New("console_addr is required")
	}
	if net.ParseIP(c.ConsoleAddr) == nil {
		return errors.New("console_addr is not a valid IP address")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be positive")
	}
	return nil
}

// Feed receives, decrypts and decodes the simulator telemetry stream.
type Feed struct {
	cfg     Config
	log     logger.Logger
	metrics *metric.Registry

	out   chan *domain.Packet
	ready chan struct{}
	conn  *net.UDPConn
}

// Option configures the Feed.
type Option func(*Feed)

// WithLogger sets the feed logger.
func WithLogger(log logger.Logger) Option {
	return func(f *Feed) { f.log = log }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(f *Feed) { f.metrics = m }
}

// New creates a feed. Run must be called to start ingestion.
func New(cfg Config, opts ...Option) (*Feed, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	f := &Feed{
		cfg:   cfg,
		log:   logger.Default(),
		out:   make(chan *domain.Packet, 1),
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Packets returns the decoded packet stream. The channel holds at most
// one packet; under backpressure older packets are replaced, so a
// receive always yields the freshest data.
func (f *Feed) Packets() <-chan *domain.Packet {
	return f.out
}

// Ready closes once the receive socket is bound.
func (f *Feed) Ready() <-chan struct{} {
	return f.ready
}

// LocalAddr returns the bound receive address. Valid after Ready.
func (f *Feed) LocalAddr() net.Addr {
	return f.conn.LocalAddr()
}

// Run binds the receive port and ingests datagrams until the context
// is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: f.cfg.ReceivePort})
	if err != nil {
		return fmt.Errorf("bind receive port: %w", err)
	}
	f.conn = conn
	close(f.ready)

	f.log.Info("feed listening",
		"addr", conn.LocalAddr().String(),
		"console", f.cfg.ConsoleAddr,
	)

	consoleAddr := &net.UDPAddr{
		IP:   net.ParseIP(f.cfg.ConsoleAddr),
		Port: f.cfg.HeartbeatPort,
	}

	// Unblock the read loop on cancellation.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go f.heartbeatLoop(ctx, conn, consoleAddr)

	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				f.log.Info("feed stopped")
				return nil
			}
			return fmt.Errorf("read datagram: %w", err)
		}
		f.ingest(buf[:n])
	}
}

// heartbeatLoop keeps the simulator broadcasting. The first heartbeat
// goes out immediately.
func (f *Feed) heartbeatLoop(ctx context.Context, conn *net.UDPConn, console *net.UDPAddr) {
	ticker := time.NewTicker(f.cfg.HeartbeatInterval)
	defer ticker.Stop()

	beat := []byte{heartbeatByte}
	for {
		if _, err := conn.WriteToUDP(beat, console); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.Warn("heartbeat send failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ingest decrypts and decodes one datagram, then publishes it with
// keep-latest semantics.
func (f *Feed) ingest(raw []byte) {
	if len(raw) < domain.PacketSize {
		return
	}

	plain, err := decrypt(raw)
	if err != nil {
		if f.metrics != nil {
			f.metrics.FeedDecryptErrors.Inc()
		}
		f.log.Debug("datagram dropped", "error", err)
		return
	}

	pkt, err := domain.ParsePacket(plain, time.Now())
	if err != nil {
		if f.metrics != nil {
			f.metrics.FeedDecryptErrors.Inc()
		}
		f.log.Debug("datagram dropped", "error", err)
		return
	}

	if f.metrics != nil {
		f.metrics.FeedPackets.Inc()
	}

	select {
	case f.out <- pkt:
	default:
		// Replace the stale packet.
		select {
		case <-f.out:
		default:
		}
		select {
		case f.out <- pkt:
		default:
		}
	}
}
