package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bridge serves each connection with the next script. A script sends its
// frames and then either closes normally or drops the connection.
type script struct {
	frames []string
	normal bool
}

func bridge(t *testing.T, scripts ...script) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(conns.Add(1)) - 1
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		if n >= len(scripts) {
			return
		}
		sc := scripts[n]
		for _, f := range sc.frames {
			if err := c.WriteMessage(ws.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if sc.normal {
			_ = c.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "done"))
			// wait for the client to answer the close
			_ = c.SetReadDeadline(time.Now().Add(time.Second))
			_, _, _ = c.ReadMessage()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_ReadsUntilNormalClose(t *testing.T) {
	srv, conns := bridge(t, script{
		frames: []string{
			`{"time": 0, "joints": {"Head": {"x": 0, "y": 1.5, "z": 2}}}`,
			`{"hello": "bridge"}`,
			`{"time": 33, "joints": {"SpineBase": {}, "Spine": {"x": 0, "y": 0.2, "z": 2}}}`,
		},
		normal: true,
	})

	var got []core.Pose
	err := NewWebSocket(wsURL(srv), nil).Run(context.Background(), func(p core.Pose) {
		got = append(got, p)
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 1.5, got[0].Position(core.Head).Y)
	assert.Equal(t, 33.0, got[1].Time)
	assert.Equal(t, 0.2, got[1].Position(core.Spine).Y)
	assert.Equal(t, int32(1), conns.Load())
}

func TestWebSocket_ReconnectsAfterDrop(t *testing.T) {
	srv, conns := bridge(t,
		script{frames: []string{`{"time": 0, "joints": {"Head": {}}}`}},
		script{frames: []string{`{"time": 200, "joints": {"Head": {}}}`}, normal: true},
	)

	src := NewWebSocket(wsURL(srv), nil)
	src.Backoff = 10 * time.Millisecond

	var times []float64
	err := src.Run(context.Background(), func(p core.Pose) {
		times = append(times, p.Time)
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 200}, times)
	assert.Equal(t, int32(2), conns.Load())
}

func TestWebSocket_GivesUpAfterMaxReconnect(t *testing.T) {
	srv, _ := bridge(t, script{frames: []string{`{"time": 0, "joints": {"Head": {}}}`}})
	url := wsURL(srv)

	src := NewWebSocket(url, nil)
	src.Backoff = time.Millisecond
	src.MaxReconnect = 2

	delivered := 0
	done := make(chan error, 1)
	go func() {
		done <- src.Run(context.Background(), func(core.Pose) {
			delivered++
			// later dials must fail
			srv.Close()
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reconnect failed after 2 attempts")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not give up")
	}
	assert.Equal(t, 1, delivered)
}

func TestWebSocket_DialError(t *testing.T) {
	err := NewWebSocket("ws://127.0.0.1:1/none", nil).Run(context.Background(), func(core.Pose) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
}

func TestWebSocket_ContextCancel(t *testing.T) {
	// the bridge keeps the connection open without sending anything
	release := make(chan struct{})
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewWebSocket(wsURL(srv), nil).Run(ctx, func(core.Pose) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
