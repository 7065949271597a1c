package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/lapworks/lapstream-go/internal/client/transport"
	"github.com/lapworks/lapstream-go/internal/core/domain"
)

// fakeTransport is a scriptable in-memory transport.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []domain.Frame
	in    chan domain.Frame
	errCh chan error
	done  chan struct{}
	once  sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:    make(chan domain.Frame, 16),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) ReadFrame() (domain.Frame, error) {
	select {
	case frame := <-f.in:
		return frame, nil
	case err := <-f.errCh:
		return domain.Frame{}, err
	case <-f.done:
		return domain.Frame{}, net.ErrClosed
	}
}

func (f *fakeTransport) WriteFrame(frame domain.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

// fail injects a read error, simulating transport loss.
func (f *fakeTransport) fail(err error) {
	f.errCh <- err
}

func (f *fakeTransport) sentFrames() []domain.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Frame, len(f.sent))
	copy(out, f.sent)
	return out
}

// dialResult is one scripted Dial outcome. The last entry repeats.
type dialResult struct {
	tr  *fakeTransport
	err error
}

type fakeDialer struct {
	mu     sync.Mutex
	script []dialResult
	calls  int
}

func (d *fakeDialer) Name() string { return "fake" }

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (transport.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.script) == 0 {
		return nil, errors.New("unscripted dial")
	}
	r := d.script[0]
	if len(d.script) > 1 {
		d.script = d.script[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.tr, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func testConfig() Config {
	return Config{
		EndpointURL:          "http://localhost:9",
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 3,
		BufferCapacity:       8,
	}
}

func newTestClient(t *testing.T, d *fakeDialer) *Client {
	t.Helper()
	c, err := New(testConfig(), WithDialers(d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

// watch buffers every dispatch of an event for later inspection.
func watch(c *Client, event string) <-chan any {
	ch := make(chan any, 16)
	c.On(event, func(payload any) {
		select {
		case ch <- payload:
		default:
		}
	})
	return ch
}

func waitEvent(t *testing.T, ch <-chan any, what string) any {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.GetState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.GetState(), want)
}

func TestConnect_Success(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{{tr: tr}}}
	c := newTestClient(t, d)

	connected := watch(c, domain.EventConnected)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connected, "connected event")

	if got := c.GetState(); got != Connected {
		t.Errorf("state = %v, want Connected", got)
	}
}

func TestConnect_Idempotent(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{{tr: tr}}}
	c := newTestClient(t, d)

	connected := watch(c, domain.EventConnected)
	if err := c.Connect(); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	waitEvent(t, connected, "connected event")

	// Already connected: no new dial, no error.
	if err := c.Connect(); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := d.dialCount(); n != 1 {
		t.Errorf("dial count = %d, want 1", n)
	}
}

func TestSend_RejectedWhileDisconnected(t *testing.T) {
	c := newTestClient(t, &fakeDialer{})

	err := c.Send(domain.EventSubscribe, domain.ChannelRequest{Channel: "telemetry"})
	if !errors.Is(err, domain.ErrSendRejected) {
		t.Errorf("err = %v, want ErrSendRejected", err)
	}
}

func TestSend_WhileConnected(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{{tr: tr}}}
	c := newTestClient(t, d)

	connected := watch(c, domain.EventConnected)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connected, "connected event")

	if err := c.SubscribeChannel("laps"); err != nil {
		t.Fatalf("SubscribeChannel: %v", err)
	}

	frames := tr.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(frames))
	}
	if frames[0].Event != domain.EventSubscribe {
		t.Errorf("event = %q", frames[0].Event)
	}
	var req domain.ChannelRequest
	if err := json.Unmarshal(frames[0].Payload, &req); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if req.Channel != "laps" {
		t.Errorf("channel = %q", req.Channel)
	}
}

func TestReconnect_AfterLoss(t *testing.T) {
	tr1 := newFakeTransport()
	tr2 := newFakeTransport()
	d := &fakeDialer{script: []dialResult{
		{tr: tr1},
		{err: errors.New("refused")},
		{tr: tr2},
	}}
	c := newTestClient(t, d)

	connected := watch(c, domain.EventConnected)
	disconnected := watch(c, domain.EventDisconnected)
	connErrs := watch(c, domain.EventConnectionError)
	reconnected := watch(c, domain.EventReconnected)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connected, "first connected event")

	tr1.fail(errors.New("broken pipe"))

	payload := waitEvent(t, disconnected, "disconnected event")
	ev, ok := payload.(domain.DisconnectedEvent)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if ev.Reason.CallerInitiated() {
		t.Errorf("reason = %q, want transport-initiated", ev.Reason)
	}

	// First redial fails, second succeeds after the fixed delay.
	errPayload := waitEvent(t, connErrs, "connection_error event")
	ce := errPayload.(domain.ConnectionErrorEvent)
	if ce.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", ce.Attempt)
	}

	waitEvent(t, connected, "second connected event")
	recPayload := waitEvent(t, reconnected, "reconnected event")
	re := recPayload.(domain.ReconnectedEvent)
	if re.Attempts != 1 {
		t.Errorf("reconnected attempts = %d, want 1", re.Attempts)
	}
	waitState(t, c, Connected)
}

func TestReconnect_Exhaustion(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errors.New("refused")}}}
	c := newTestClient(t, d)

	connErrs := watch(c, domain.EventConnectionError)
	exhausted := watch(c, domain.EventExhausted)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for i := 1; i <= 3; i++ {
		payload := waitEvent(t, connErrs, "connection_error event")
		ce := payload.(domain.ConnectionErrorEvent)
		if ce.Attempt != i {
			t.Errorf("attempt = %d, want %d", ce.Attempt, i)
		}
	}

	payload := waitEvent(t, exhausted, "exhausted event")
	ex := payload.(domain.ExhaustedEvent)
	if ex.Attempts != 3 {
		t.Errorf("exhausted attempts = %d, want 3", ex.Attempts)
	}
	waitState(t, c, Failed)

	// No further dials once Failed.
	n := d.dialCount()
	time.Sleep(50 * time.Millisecond)
	if d.dialCount() != n {
		t.Error("dials continued after exhaustion")
	}
}

func TestConnect_AfterFailed(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{tr: tr},
	}}
	c := newTestClient(t, d)

	exhausted := watch(c, domain.EventExhausted)
	connected := watch(c, domain.EventConnected)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, exhausted, "exhausted event")
	waitState(t, c, Failed)

	// The attempt counter resets on a fresh Connect.
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect after Failed: %v", err)
	}
	waitEvent(t, connected, "connected event")
	waitState(t, c, Connected)
}

func TestDisconnect_CancelsReconnect(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errors.New("refused")}}}

	cfg := testConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond
	cfg.MaxReconnectAttempts = 10
	c, err := New(cfg, WithDialers(d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	connErrs := watch(c, domain.EventConnectionError)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connErrs, "connection_error event")
	waitState(t, c, Reconnecting)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if got := c.GetState(); got != Disconnected {
		t.Fatalf("state = %v, want Disconnected", got)
	}

	// The pending retry timer must not fire a new dial.
	n := d.dialCount()
	time.Sleep(150 * time.Millisecond)
	if d.dialCount() != n {
		t.Error("dial fired after Disconnect")
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{{tr: tr}}}
	c := newTestClient(t, d)

	connected := watch(c, domain.EventConnected)
	disconnected := watch(c, domain.EventDisconnected)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connected, "connected event")

	if err := c.Disconnect(); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	payload := waitEvent(t, disconnected, "disconnected event")
	ev := payload.(domain.DisconnectedEvent)
	if !ev.Reason.CallerInitiated() {
		t.Errorf("reason = %q, want caller-initiated", ev.Reason)
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	select {
	case <-disconnected:
		t.Error("duplicate disconnected event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnect_FromDisconnectedNoEvent(t *testing.T) {
	c := newTestClient(t, &fakeDialer{})
	disconnected := watch(c, domain.EventDisconnected)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	select {
	case <-disconnected:
		t.Error("disconnected event without a connection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnect_RejectedWhileReconnecting(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errors.New("refused")}}}

	cfg := testConfig()
	cfg.ReconnectDelay = time.Second
	c, err := New(cfg, WithDialers(d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect() })

	connErrs := watch(c, domain.EventConnectionError)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connErrs, "connection_error event")
	waitState(t, c, Reconnecting)

	if err := c.Connect(); !domain.IsDomainError(err, "LS-CONN-1003") {
		t.Errorf("err = %v, want LS-CONN-1003", err)
	}
}

func TestInboundFrames_BufferedAndDispatched(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{{tr: tr}}}
	c := newTestClient(t, d)

	connected := watch(c, domain.EventConnected)
	telemetry := watch(c, domain.EventTelemetryData)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connected, "connected event")

	frame, err := domain.NewFrame(domain.EventTelemetryData, domain.TelemetryData{Speed: 212.5})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	tr.in <- frame

	payload := waitEvent(t, telemetry, "telemetry_data event")
	sample, ok := payload.(domain.Sample)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	td, err := sample.Telemetry()
	if err != nil {
		t.Fatalf("Telemetry: %v", err)
	}
	if td.Speed != 212.5 {
		t.Errorf("speed = %v", td.Speed)
	}

	latest, ok := c.Latest()
	if !ok {
		t.Fatal("Latest: buffer empty")
	}
	if latest.Event != domain.EventTelemetryData {
		t.Errorf("latest event = %q", latest.Event)
	}
	if got := len(c.Snapshot()); got != 1 {
		t.Errorf("snapshot len = %d, want 1", got)
	}

	c.ClearBuffer()
	if _, ok := c.Latest(); ok {
		t.Error("buffer not cleared")
	}
}

func TestBuffer_BoundedByCapacity(t *testing.T) {
	tr := newFakeTransport()
	d := &fakeDialer{script: []dialResult{{tr: tr}}}

	cfg := testConfig()
	cfg.BufferCapacity = 3
	c, err := New(cfg, WithDialers(d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect() })

	connected := watch(c, domain.EventConnected)
	telemetry := watch(c, domain.EventTelemetryData)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, connected, "connected event")

	for i := 0; i < 5; i++ {
		frame, err := domain.NewFrame(domain.EventTelemetryData, domain.TelemetryData{RPM: float64(i)})
		if err != nil {
			t.Fatalf("NewFrame: %v", err)
		}
		tr.in <- frame
		waitEvent(t, telemetry, "telemetry_data event")
	}

	snap := c.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	// Oldest two evicted; newest retained.
	td, err := snap[len(snap)-1].Telemetry()
	if err != nil {
		t.Fatalf("Telemetry: %v", err)
	}
	if td.RPM != 4 {
		t.Errorf("newest RPM = %v, want 4", td.RPM)
	}
}

func TestConfig_Verify(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Verify(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.EndpointURL = ""
	if err := bad.Verify(); err == nil {
		t.Error("empty endpoint accepted")
	}

	bad = DefaultConfig()
	bad.ReconnectDelay = 0
	if err := bad.Verify(); err == nil {
		t.Error("zero reconnect delay accepted")
	}

	bad = DefaultConfig()
	bad.MaxReconnectAttempts = 0
	if err := bad.Verify(); err == nil {
		t.Error("zero max attempts accepted")
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Reconnecting: "reconnecting",
		Failed:       "failed",
		State(99):    "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
