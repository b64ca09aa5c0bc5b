package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tasksync/internal/logger"
	"tasksync/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// scriptedNotifyServer hands every request (numbered from 0) to respond on
// the connection's goroutine.
func scriptedNotifyServer(t *testing.T, respond func(conn *websocket.Conn, n int, req ws.Message)) string {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for n := 0; ; n++ {
			var req ws.Message
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			respond(conn, n, req)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNotifyClient_RepliesMatchTheirRequest(t *testing.T) {
	var timedOut string
	url := scriptedNotifyServer(t, func(conn *websocket.Conn, n int, req ws.Message) {
		switch n {
		case 0:
			// answered late, after the caller gave up
			timedOut = req.Ref
		case 1:
			_ = conn.WriteJSON(ws.Message{Type: ws.MsgError, Message: "late failure", Ref: timedOut})
			_ = conn.WriteJSON(ws.Message{Type: ws.MsgPong, Ref: timedOut})
			_ = conn.WriteJSON(ws.Message{Type: ws.MsgSubscribed, Ref: req.Ref})
		case 2:
			_ = conn.WriteJSON(ws.Message{Type: ws.MsgError, Message: "busy", Ref: req.Ref})
		default:
			_ = conn.WriteJSON(ws.Message{Type: ws.MsgUnsubscribed, Ref: req.Ref})
		}
	})

	nc, err := DialNotify(context.Background(), url, nil, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	short, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, nc.Ping(short), context.DeadlineExceeded)

	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, nc.Subscribe(ctx))

	err = nc.Ping(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "busy")
}

func TestNotifyClient_ClosedConnectionFailsRequests(t *testing.T) {
	url := scriptedNotifyServer(t, func(conn *websocket.Conn, _ int, _ ws.Message) {
		_ = conn.Close()
	})

	nc, err := DialNotify(context.Background(), url, nil, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorIs(t, nc.Subscribe(ctx), ErrNotifyClosed)

	select {
	case <-nc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection not reported as done")
	}
}
