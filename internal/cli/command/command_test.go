package command

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/storage"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var buf bytes.Buffer
	app.Writer = &buf
	err := app.Run(append([]string{"lapstream-cli"}, args...))
	return buf.String(), err
}

func TestApp_Commands(t *testing.T) {
	app := App()
	want := []string{"watch", "send", "sessions", "version"}
	for _, name := range want {
		if app.Command(name) == nil {
			t.Errorf("command %q missing", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "lapstream-cli") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "commit:") {
		t.Errorf("output = %q", out)
	}
}

func TestSend_RequiresEvent(t *testing.T) {
	if _, err := runApp(t, "send"); err == nil {
		t.Error("send without event accepted")
	}
}

func TestSend_RejectsBadPayload(t *testing.T) {
	if _, err := runApp(t, "send", "subscribe", "{not json"); err == nil {
		t.Error("malformed payload accepted")
	}
}

func seedStore(t *testing.T) (string, *domain.Session) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.Open(storage.DefaultConfig(dir), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	session, err := domain.NewSession("Brands Hatch", "Supra", "")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	session.LapCount = 1
	session.BestLapMillis = 83456
	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	lap, err := domain.NewLap(session.ID, 1, 83456)
	if err != nil {
		t.Fatalf("NewLap: %v", err)
	}
	lap.IsBest = true
	if err := store.SaveLap(context.Background(), lap); err != nil {
		t.Fatalf("SaveLap: %v", err)
	}
	return dir, session
}

func TestSessionsList(t *testing.T) {
	dir, session := seedStore(t)

	out, err := runApp(t, "sessions", "list", "--data-dir", dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, session.ID) {
		t.Errorf("output missing session ID: %q", out)
	}
	if !strings.Contains(out, "Brands Hatch") {
		t.Errorf("output missing circuit: %q", out)
	}
	if !strings.Contains(out, "1:23.456") {
		t.Errorf("output missing best lap: %q", out)
	}
}

func TestSessionLaps(t *testing.T) {
	dir, session := seedStore(t)

	out, err := runApp(t, "sessions", "laps", "--data-dir", dir, session.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "1:23.456") {
		t.Errorf("output = %q", out)
	}

	// Unknown session is a clear error.
	if _, err := runApp(t, "sessions", "laps", "--data-dir", dir, "lsse-missing"); err == nil {
		t.Error("unknown session accepted")
	}
}

func TestFormatLapTime(t *testing.T) {
	cases := map[int64]string{
		0:      "-",
		-1:     "-",
		59999:  "0:59.999",
		60000:  "1:00.000",
		83456:  "1:23.456",
		600123: "10:00.123",
	}
	for ms, want := range cases {
		if got := formatLapTime(ms); got != want {
			t.Errorf("formatLapTime(%d) = %q, want %q", ms, got, want)
		}
	}
}
