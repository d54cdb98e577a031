package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/kinemo/motionrec/pkg/core"
)

const (
	maxReconnect   = 10
	maxBackoff     = 30 * time.Second
	initialBackoff = time.Second
)

// WebSocket reads frames as text messages from a tracker bridge.
type WebSocket struct {
	url    string
	dialer *ws.Dialer
	logger *slog.Logger

	// Backoff is the first reconnect delay; it doubles per failed attempt up
	// to 30s.
	Backoff time.Duration
	// MaxReconnect is the number of consecutive failed dials before Run
	// gives up.
	MaxReconnect int
}

// NewWebSocket creates a source for the bridge at url (ws:// or wss://).
func NewWebSocket(url string, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		url:          url,
		dialer:       ws.DefaultDialer,
		logger:       logger,
		Backoff:      initialBackoff,
		MaxReconnect: maxReconnect,
	}
}

// Run reads frames until the bridge closes the connection normally, ctx is
// cancelled, or reconnecting fails MaxReconnect times in a row. A normal
// close returns nil.
func (s *WebSocket) Run(ctx context.Context, deliver func(core.Pose)) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	for {
		err := s.readLoop(ctx, conn, deliver)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			s.logger.Info("Tracker bridge closed the stream")
			return nil
		}

		s.logger.Warn("WebSocket read error", "error", err)
		conn, err = s.reconnect(ctx)
		if err != nil {
			return err
		}
	}
}

func (s *WebSocket) dial(ctx context.Context) (*ws.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// readLoop returns nil on a normal close frame.
func (s *WebSocket) readLoop(ctx context.Context, conn *ws.Conn, deliver func(core.Pose)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *ws.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == ws.CloseNormalClosure {
				return nil
			}
			return err
		}
		if msgType != ws.TextMessage {
			continue
		}

		pose, err := ParseFrame(data)
		if err != nil {
			s.logger.Debug("Non-frame message received", "error", err)
			continue
		}
		deliver(pose)
	}
}

func (s *WebSocket) reconnect(ctx context.Context) (*ws.Conn, error) {
	backoff := s.Backoff
	for attempt := 1; attempt <= s.MaxReconnect; attempt++ {
		s.logger.Info("Reconnecting to tracker bridge", "attempt", attempt, "backoff", backoff)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}

		conn, err := s.dial(ctx)
		if err != nil {
			s.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		s.logger.Info("WebSocket reconnected", "attempt", attempt)
		return conn, nil
	}
	return nil, fmt.Errorf("websocket reconnect failed after %d attempts", s.MaxReconnect)
}
