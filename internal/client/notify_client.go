package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/ws"

	"github.com/gorilla/websocket"
)

const (
	notifyWriteWait = 10 * time.Second
	disconnectWait  = 2 * time.Second
)

var ErrNotifyClosed = errors.New("notify connection closed")

// EventHandler receives pushed change events. It runs on the connection's
// read goroutine and should hand work off quickly.
type EventHandler interface {
	OnTaskAdded(t domain.Task) error
	OnTaskUpdated(t domain.Task) error
	OnTaskDeleted(id string) error
}

// NotifyClient is one websocket connection to the notify endpoint.
type NotifyClient struct {
	conn    *websocket.Conn
	wmu     sync.Mutex
	handler EventHandler

	// one request in flight at a time; replies carry its ref
	reqSlot chan struct{}
	nextRef atomic.Uint64

	acks chan ws.Message
	done chan struct{}
	log  *slog.Logger
}

// DialNotify connects to url and starts reading. The server pushes no events
// until Subscribe has been acknowledged.
func DialNotify(ctx context.Context, url string, handler EventHandler, log *slog.Logger) (*NotifyClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial notify endpoint: %w", err)
	}
	c := &NotifyClient{
		conn:    conn,
		handler: handler,
		reqSlot: make(chan struct{}, 1),
		acks:    make(chan ws.Message, 8),
		done:    make(chan struct{}),
		log:     log.With("component", "notify_client"),
	}
	go c.readLoop()
	return c, nil
}

// Subscribe registers this connection with the hub and waits for the ack.
func (c *NotifyClient) Subscribe(ctx context.Context) error {
	return c.request(ctx, ws.MsgSubscribe, ws.MsgSubscribed)
}

func (c *NotifyClient) Unsubscribe(ctx context.Context) error {
	return c.request(ctx, ws.MsgUnsubscribe, ws.MsgUnsubscribed)
}

func (c *NotifyClient) Ping(ctx context.Context) error {
	return c.request(ctx, ws.MsgPing, ws.MsgPong)
}

// Done is closed when the connection is gone.
func (c *NotifyClient) Done() <-chan struct{} {
	return c.done
}

// Close unsubscribes and closes the socket. Failures are logged, not
// returned: the caller is already tearing down.
func (c *NotifyClient) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectWait)
	defer cancel()

	if err := c.Unsubscribe(ctx); err != nil && !errors.Is(err, ErrNotifyClosed) {
		c.log.Warn("unsubscribe failed", "error", err)
	}

	c.wmu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(notifyWriteWait))
	c.wmu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.log.Debug("close message not sent", "error", err)
	}

	select {
	case <-c.done:
	case <-ctx.Done():
	}
	if err := c.conn.Close(); err != nil {
		c.log.Debug("close failed", "error", err)
	}
}

// request sends typ and waits for the reply carrying the same ref. Replies
// left over from earlier requests that timed out are skipped.
func (c *NotifyClient) request(ctx context.Context, typ, want string) error {
	select {
	case c.reqSlot <- struct{}{}:
		defer func() { <-c.reqSlot }()
	case <-c.done:
		return ErrNotifyClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	ref := strconv.FormatUint(c.nextRef.Add(1), 10)
	if err := c.write(ws.Message{Type: typ, Ref: ref}); err != nil {
		return err
	}
	for {
		select {
		case msg := <-c.acks:
			if msg.Ref != ref {
				c.log.Debug("stale reply skipped", "type", msg.Type, "ref", msg.Ref)
				continue
			}
			switch msg.Type {
			case want:
				return nil
			case ws.MsgError:
				return fmt.Errorf("%s rejected: %s", typ, msg.Message)
			default:
				return fmt.Errorf("%s: unexpected reply %q", typ, msg.Type)
			}
		case <-c.done:
			return ErrNotifyClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *NotifyClient) write(msg ws.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrNotifyClosed
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(notifyWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *NotifyClient) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("notify connection lost", "error", err)
			}
			return
		}

		var msg ws.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("malformed push message", "error", err)
			continue
		}

		ev, isEvent, err := msg.Event()
		if err != nil {
			c.log.Warn("invalid push message", "error", err)
			continue
		}
		if isEvent {
			c.dispatch(ev)
			continue
		}

		select {
		case c.acks <- msg:
		default:
			c.log.Debug("control message dropped", "type", msg.Type)
		}
	}
}

func (c *NotifyClient) dispatch(ev domain.ChangeEvent) {
	var err error
	switch ev.Kind {
	case domain.EventAdded:
		err = c.handler.OnTaskAdded(ev.Task)
	case domain.EventUpdated:
		err = c.handler.OnTaskUpdated(ev.Task)
	case domain.EventDeleted:
		err = c.handler.OnTaskDeleted(ev.ID)
	}
	if err != nil {
		c.log.Warn("event handler failed", "event", ev.Kind, "task_id", ev.ID, "error", err)
	}
}
