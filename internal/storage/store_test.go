package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lapworks/lapstream-go/internal/core/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(Config{}, nil); err == nil {
		t.Error("empty dir accepted")
	}
}

func TestSession_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	session, err := domain.NewSession("Nurburgring", "GT-R", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	session.LapCount = 3
	session.BestLapMillis = 92000

	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != session.ID || got.CircuitName != "Nurburgring" {
		t.Errorf("got %+v", got)
	}
	if got.GameMode != "TIME_TRIAL" {
		t.Errorf("game mode = %q", got.GameMode)
	}
	if got.LapCount != 3 || got.BestLapMillis != 92000 {
		t.Errorf("lap stats = %d/%d", got.LapCount, got.BestLapMillis)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSession(context.Background(), "lsse-missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestListSessions_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older, err := domain.NewSession("Monza", "", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	older.StartedAt = time.Now().Add(-time.Hour).UnixMilli()

	newer, err := domain.NewSession("Spa", "", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := s.SaveSession(ctx, older); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.SaveSession(ctx, newer); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len = %d, want 2", len(sessions))
	}
	if sessions[0].CircuitName != "Spa" {
		t.Errorf("first = %q, want Spa", sessions[0].CircuitName)
	}
}

func TestLaps_RoundTripOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	session, err := domain.NewSession("Suzuka", "", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	// Save out of order; listing restores lap-number order.
	for _, n := range []int{2, 1, 3} {
		lap, err := domain.NewLap(session.ID, n, int64(90000+n))
		if err != nil {
			t.Fatalf("NewLap: %v", err)
		}
		if err := s.SaveLap(ctx, lap); err != nil {
			t.Fatalf("SaveLap: %v", err)
		}
	}

	laps, err := s.ListLaps(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListLaps: %v", err)
	}
	if len(laps) != 3 {
		t.Fatalf("len = %d, want 3", len(laps))
	}
	for i, lap := range laps {
		if lap.Number != i+1 {
			t.Errorf("laps[%d].Number = %d", i, lap.Number)
		}
	}

	// Laps of another session are not mixed in.
	other, err := s.ListLaps(ctx, "lsse-other")
	if err != nil {
		t.Fatalf("ListLaps other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated laps returned: %d", len(other))
	}
}

func TestClose_RefusesFurtherUse(t *testing.T) {
	s, err := Open(DefaultConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	session, err := domain.NewSession("Monza", "", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.SaveSession(context.Background(), session); !errors.Is(err, domain.ErrStorageClosed) {
		t.Errorf("err = %v, want ErrStorageClosed", err)
	}
	if _, err := s.ListSessions(context.Background()); !errors.Is(err, domain.ErrStorageClosed) {
		t.Errorf("err = %v, want ErrStorageClosed", err)
	}
}

func TestSessions_SurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	session, err := domain.NewSession("Interlagos", "", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(DefaultConfig(dir), nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession after reopen: %v", err)
	}
	if got.CircuitName != "Interlagos" {
		t.Errorf("circuit = %q", got.CircuitName)
	}
}
