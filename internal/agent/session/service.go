package session

import (
	"context"
	"sync"

	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/storage"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
	"github.com/lapworks/lapstream-go/internal/telemetry/metric"
	"github.com/lapworks/lapstream-go/pkg/eventbus"
)

// Service records sessions and laps from the packet stream.
type Service struct {
	log     logger.Logger
	bus     *eventbus.Bus
	store   *storage.Store
	metrics *metric.Registry

	mu      sync.Mutex
	current *domain.Session
	lastLap int
	sawLap  bool
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithStore attaches a persistence layer. Without one, sessions and
// laps live only in memory.
func WithStore(store *storage.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a session service publishing on the given bus.
func New(bus *eventbus.Bus, opts ...Option) *Service {
	s := &Service{
		log: logger.Default(),
		bus: bus,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a new recording session. Only one session can be
// active at a time.
func (s *Service) Start(ctx context.Context, circuit, vehicle, gameMode string) (*domain.Session, error) {
	s.mu.Lock()
	if s.current != nil && s.current.Active() {
		s.mu.Unlock()
		return nil, domain.ErrSessionActive
	}

	session, err := domain.NewSession(circuit, vehicle, gameMode)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = session
	s.lastLap = 0
	s.sawLap = false
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveSession(ctx, session); err != nil {
			s.log.Error("persist session failed", "session_id", session.ID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}

	s.log.Info("session started",
		"session_id", session.ID,
		"circuit", session.CircuitName,
		"game_mode", session.GameMode,
	)
	s.bus.Dispatch(domain.EventSessionUpdate, domain.SessionUpdate{
		Type:    domain.SessionStarted,
		Session: session,
	})
	return session, nil
}

// Stop ends the active session.
func (s *Service) Stop(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	session := s.current
	if session == nil || !session.Active() {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	session.End()
	s.current = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveSession(ctx, session); err != nil {
			s.log.Error("persist session failed", "session_id", session.ID, "error", err)
		}
	}

	s.log.Info("session stopped",
		"session_id", session.ID,
		"laps", session.LapCount,
		"duration", session.Duration(),
	)
	s.bus.Dispatch(domain.EventSessionUpdate, domain.SessionUpdate{
		Type:    domain.SessionStopped,
		Session: session,
	})
	return session, nil
}

// Current returns the active session, or nil.
func (s *Service) Current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run consumes the packet stream until the context is cancelled.
func (s *Service) Run(ctx context.Context, packets <-chan *domain.Packet) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			s.HandlePacket(ctx, pkt)
		}
	}
}

// HandlePacket processes one decoded packet. Telemetry is always
// published; lap accounting happens only inside an active session.
func (s *Service) HandlePacket(ctx context.Context, pkt *domain.Packet) {
	s.bus.Dispatch(domain.EventTelemetryData, telemetryFromPacket(pkt))

	s.mu.Lock()
	session := s.current
	if session == nil || !session.Active() || pkt.LapCount < 0 {
		s.mu.Unlock()
		return
	}

	// Establish the baseline before detecting advances, so joining
	// mid-race does not fabricate laps.
	if !s.sawLap {
		s.lastLap = pkt.LapCount
		s.sawLap = true
		s.mu.Unlock()
		return
	}

	if pkt.LapCount <= s.lastLap {
		s.mu.Unlock()
		return
	}
	completed := s.lastLap
	s.lastLap = pkt.LapCount
	s.mu.Unlock()

	if completed < 1 || pkt.LastLapTime <= 0 {
		return
	}
	s.recordLap(ctx, session, completed, pkt.LastLapTime)
}

// recordLap stores a completed lap and publishes lap events.
func (s *Service) recordLap(ctx context.Context, session *domain.Session, number int, timeMillis int64) {
	lap, err := domain.NewLap(session.ID, number, timeMillis)
	if err != nil {
		s.log.Error("lap id generation failed", "error", err)
		return
	}

	s.mu.Lock()
	session.LapCount++
	isBest := session.BestLapMillis == 0 || timeMillis < session.BestLapMillis
	if isBest {
		session.BestLapMillis = timeMillis
	}
	lap.IsBest = isBest
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveLap(ctx, lap); err != nil {
			s.log.Error("persist lap failed", "lap_id", lap.ID, "error", err)
		}
		if err := s.store.SaveSession(ctx, session); err != nil {
			s.log.Error("persist session failed", "session_id", session.ID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.LapsCompleted.Inc()
	}

	s.log.Info("lap completed",
		"session_id", session.ID,
		"lap", lap.Number,
		"time_ms", lap.TimeMillis,
		"best", lap.IsBest,
	)
	s.bus.Dispatch(domain.EventLapCompleted, lap)
	if isBest {
		s.bus.Dispatch(domain.EventBestLap, lap)
	}
}

// telemetryFromPacket converts a decoded packet into the telemetry
// reading broadcast to consumers.
func telemetryFromPacket(pkt *domain.Packet) domain.TelemetryData {
	status := domain.TelemetryStatusActive
	if pkt.Flags.Paused {
		status = domain.TelemetryStatusPaused
	}
	return domain.TelemetryData{
		Timestamp: float64(pkt.ReceivedAt.UnixMilli()) / 1000.0,
		Speed:     pkt.SpeedKMH(),
		RPM:       pkt.EngineRPM,
		Gear:      pkt.GearLabel(),
		Throttle:  pkt.ThrottlePct(),
		Brake:     pkt.BrakePct(),
		Position: domain.Position{
			X: pkt.Position.X,
			Y: pkt.Position.Y,
			Z: pkt.Position.Z,
		},
		Vehicle: domain.VehicleData{
			CarID:            pkt.CarID,
			OilPressure:      pkt.OilPressure,
			OilTemperature:   pkt.OilTemperature,
			WaterTemperature: pkt.WaterTemperature,
			FuelLevel:        pkt.GasLevel,
			FuelCapacity:     pkt.GasCapacity,
			FuelPercentage:   pkt.FuelPct(),
			TurboBoost:       pkt.TurboBoost,
			TireTemperatures: domain.TireTemperatures{
				FrontLeft:  pkt.Wheels.FrontLeft.Temperature,
				FrontRight: pkt.Wheels.FrontRight.Temperature,
				RearLeft:   pkt.Wheels.RearLeft.Temperature,
				RearRight:  pkt.Wheels.RearRight.Temperature,
			},
		},
		Flags: domain.StatusFlags{
			OnTrack: pkt.Flags.CarOnTrack,
			Paused:  pkt.Flags.Paused,
		},
		Status: status,
	}
}
