package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Feed struct {
		ConsoleAddr string `koanf:"console_addr"`
	} `koanf:"feed"`
	Fanout struct {
		Addr string `koanf:"addr"`
	} `koanf:"fanout"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lapstream.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
feed:
  console_addr: 192.168.1.50
fanout:
  addr: 127.0.0.1:8000
log:
  level: debug
`)

	var cfg testConfig
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Feed.ConsoleAddr != "192.168.1.50" {
		t.Errorf("ConsoleAddr = %q", cfg.Feed.ConsoleAddr)
	}
	if cfg.Fanout.Addr != "127.0.0.1:8000" {
		t.Errorf("Addr = %q", cfg.Fanout.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "log:\n  level: info\n")

	t.Setenv("LAPSTREAM_LOG_LEVEL", "error")

	var cfg testConfig
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("Level = %q, want env override", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	l := NewLoader(WithConfigFile("/nonexistent/lapstream.yaml"))
	if err := l.Load(&cfg); err == nil {
		t.Error("Load should fail for a missing config file")
	}
}

func TestLoad_NoFile(t *testing.T) {
	var cfg testConfig
	l := NewLoader()
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load without file should succeed: %v", err)
	}
}

func TestLoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"fanout.addr": ":9000"}); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if got := l.GetString("fanout.addr"); got != ":9000" {
		t.Errorf("GetString = %q", got)
	}
}

func TestWithEnvPrefix(t *testing.T) {
	t.Setenv("CUSTOM_LOG_LEVEL", "warn")

	var cfg testConfig
	l := NewLoader(WithEnvPrefix("CUSTOM_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Log.Level)
	}
}

func TestMapProvider_ReadBytes(t *testing.T) {
	p := mapProvider{}
	if _, err := p.ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes err = %v", err)
	}
}

func TestWatcher(t *testing.T) {
	path := writeFile(t, "log:\n  level: info\n")

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	changed := make(chan string, 1)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	w.StartAsync()

	// Give the watcher loop a moment to start before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification within 2s")
	}
}
