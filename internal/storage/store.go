package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
)

// Key prefixes.
const (
	sessionPrefix = "session/"
	lapPrefix     = "lap/"
)

// Config configures the store.
type Config struct {
	// Dir is the database directory.
	Dir string `koanf:"dir"`

	// GCInterval is the pause between value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCThreshold is the value-log discard ratio that triggers a
	// rewrite (0.0 to 1.0).
	GCThreshold float64 `koanf:"gc_threshold"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `koanf:"sync_writes"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  false,
	}
}

// Store is a Badger-backed session and lap store.
type Store struct {
	db     *badger.DB
	cfg    Config
	log    logger.Logger
	closed atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens the store, creating the directory if needed.
func Open(cfg Config, log logger.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	if log == nil {
		log = logger.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{log: log}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.gcLoop()

	log.Info("storage opened", "dir", cfg.Dir, "gc_interval", cfg.GCInterval)
	return s, nil
}

// SaveSession writes a session record.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	if s.closed.Load() {
		return domain.ErrStorageClosed
	}
	return s.setJSON(sessionKey(session.ID), session)
}

// GetSession reads a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if s.closed.Load() {
		return nil, domain.ErrStorageClosed
	}

	var session domain.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &session); err != nil {
				return domain.ErrStorageCorrupt.WithCause(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns all stored sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	if s.closed.Load() {
		return nil, domain.ErrStorageClosed
	}

	var sessions []*domain.Session
	err := s.scan([]byte(sessionPrefix), func(_, value []byte) error {
		var session domain.Session
		if err := json.Unmarshal(value, &session); err != nil {
			return domain.ErrStorageCorrupt.WithCause(err)
		}
		sessions = append(sessions, &session)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Key order is lexicographic by ID; sort by start time instead.
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			if sessions[j].StartedAt > sessions[i].StartedAt {
				sessions[i], sessions[j] = sessions[j], sessions[i]
			}
		}
	}
	return sessions, nil
}

// SaveLap writes a lap record.
func (s *Store) SaveLap(ctx context.Context, lap *domain.Lap) error {
	if s.closed.Load() {
		return domain.ErrStorageClosed
	}
	return s.setJSON(lapKey(lap.SessionID, lap.ID), lap)
}

// ListLaps returns the laps of a session in lap-number order.
func (s *Store) ListLaps(ctx context.Context, sessionID string) ([]*domain.Lap, error) {
	if s.closed.Load() {
		return nil, domain.ErrStorageClosed
	}

	var laps []*domain.Lap
	prefix := []byte(lapPrefix + sessionID + "/")
	err := s.scan(prefix, func(_, value []byte) error {
		var lap domain.Lap
		if err := json.Unmarshal(value, &lap); err != nil {
			return domain.ErrStorageCorrupt.WithCause(err)
		}
		laps = append(laps, &lap)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(laps); i++ {
		for j := i + 1; j < len(laps); j++ {
			if laps[j].Number < laps[i].Number {
				laps[i], laps[j] = laps[j], laps[i]
			}
		}
	}
	return laps, nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close db: %w", err)
	}
	s.log.Info("storage closed")
	return nil
}

func (s *Store) setJSON(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

func (s *Store) scan(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.Key(), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// gcLoop runs periodic value-log garbage collection.
func (s *Store) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(s.cfg.GCThreshold)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.log.Warn("value log gc failed", "error", err)
					}
					break
				}
			}
		case <-s.stopCh:
			return
		}
	}
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

func lapKey(sessionID, lapID string) []byte {
	return []byte(lapPrefix + sessionID + "/" + lapID)
}

// badgerLogger adapts the application logger to Badger's interface.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
