package microphone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"speech-to-tweet/internal/capture"
)

const (
	closeWriteTimeout = time.Second
	drainTimeout      = 2 * time.Second
)

// WebSocketSource records from a relay that streams binary audio frames,
// e.g. a browser or phone forwarding its recorder output. Text frames are
// control messages and are ignored.
type WebSocketSource struct {
	url    string
	dialer *websocket.Dialer
}

func NewWebSocketSource(rawURL string) (*WebSocketSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("microphone: invalid relay URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("microphone: relay URL must be ws:// or wss://, got %q", u.Scheme)
	}
	return &WebSocketSource{url: u.String(), dialer: websocket.DefaultDialer}, nil
}

func (s *WebSocketSource) Open(ctx context.Context) (capture.Stream, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: relay answered %d", ErrPermissionDenied, resp.StatusCode)
		}
		return nil, fmt.Errorf("microphone: dial relay: %w", err)
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn    *websocket.Conn
	stopped atomic.Bool
	once    sync.Once
}

func (s *wsStream) ReadChunk() ([]byte, error) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.stopped.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				_ = s.conn.Close()
				return nil, io.EOF
			}
			return nil, fmt.Errorf("microphone: relay read: %w", err)
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Stop asks the relay to close. Frames already in flight are still delivered
// until the relay acknowledges or the drain timeout passes.
func (s *wsStream) Stop() error {
	var err error
	s.once.Do(func() {
		s.stopped.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "recording stopped")
		err = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(drainTimeout))
	})
	return err
}
