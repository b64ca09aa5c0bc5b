package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tasksync/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 4096
)

var (
	ErrClientClosed   = errors.New("subscriber connection closed")
	ErrSendBufferFull = errors.New("subscriber send buffer full")
)

// Client is one websocket connection on the notify endpoint. It becomes a hub
// subscriber only after it sends a subscribe message.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func NewClient(conn *websocket.Conn, hub *Hub, sendBuffer int, log *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Hub:  hub,
		done: make(chan struct{}),
		log:  log.With("component", "ws_client", "client_id", id),
	}
}

// Run starts the write pump and blocks in the read pump until the
// connection goes away.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) OnTaskAdded(task domain.Task) error {
	return c.push(EventMessage(domain.Added(task)))
}

func (c *Client) OnTaskUpdated(task domain.Task) error {
	return c.push(EventMessage(domain.Updated(task)))
}

func (c *Client) OnTaskDeleted(id string) error {
	return c.push(EventMessage(domain.Deleted(id)))
}

// push never blocks: a slow reader loses the message instead of stalling
// the broadcast.
func (c *Client) push(msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.Send <- b:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

//read
func (c *Client) readPump() {
	defer c.disconnect()

	c.Conn.SetReadLimit(readLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("read error", "error", err)
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn("malformed message", "error", err)
		_ = c.push(Message{Type: MsgError, Message: "malformed message"})
		return
	}

	switch msg.Type {
	case MsgSubscribe:
		c.Hub.Subscribe(c)
		c.reply(msg, Message{Type: MsgSubscribed})
	case MsgUnsubscribe:
		c.Hub.Unsubscribe(c)
		c.reply(msg, Message{Type: MsgUnsubscribed})
	case MsgPing:
		c.reply(msg, Message{Type: MsgPong})
	default:
		c.log.Warn("unknown message type", "type", msg.Type)
		c.reply(msg, Message{Type: MsgError, Message: "unknown message type: " + msg.Type})
	}
}

func (c *Client) reply(req, resp Message) {
	resp.Ref = req.Ref
	if err := c.push(resp); err != nil {
		c.log.Warn("reply dropped", "type", resp.Type, "error", err)
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Warn("write error", "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

//disconnect
func (c *Client) disconnect() {
	c.Hub.Unsubscribe(c)
	c.close()
	c.log.Info("client disconnected")
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
