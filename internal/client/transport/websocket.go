package transport

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lapworks/lapstream-go/internal/core/domain"
)

const (
	// defaultHandshakeTimeout bounds the WebSocket upgrade.
	defaultHandshakeTimeout = 10 * time.Second

	// writeTimeout bounds a single frame write.
	writeTimeout = 10 * time.Second
)

// WebSocketDialer dials LapStream servers over WebSocket.
type WebSocketDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// NewWebSocketDialer creates a WebSocket dialer with default settings.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
	}
}

// Name implements Dialer.
func (d *WebSocketDialer) Name() string { return "websocket" }

// Dial implements Dialer. http(s) endpoints are rewritten to ws(s).
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (Transport, error) {
	wsURL, err := toWebSocketURL(endpoint)
	if err != nil {
		return nil, domain.ErrConnTransient.WithCause(err)
	}

	conn, resp, err := d.dialer.DialContext(ctx, wsURL, d.header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, domain.ErrConnTransient.WithCause(err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	return &wsTransport{conn: conn}, nil
}

// toWebSocketURL normalizes an endpoint URL to the ws/wss scheme.
func toWebSocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// wsTransport is an established WebSocket connection carrying JSON frames.
type wsTransport struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Name implements Transport.
func (t *wsTransport) Name() string { return "websocket" }

// ReadFrame implements Transport. Only one goroutine may read at a time.
func (t *wsTransport) ReadFrame() (domain.Frame, error) {
	var frame domain.Frame
	if err := t.conn.ReadJSON(&frame); err != nil {
		return domain.Frame{}, err
	}
	return frame, nil
}

// WriteFrame implements Transport.
func (t *wsTransport) WriteFrame(frame domain.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteJSON(frame)
}

// Close implements Transport. A close frame is sent on a best-effort
// basis before the underlying connection is torn down.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		t.writeMu.Unlock()

		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
