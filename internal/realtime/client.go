package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carepoint/portal-api/internal/session"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one connected websocket peer with its authenticated
// session.
type Client struct {
	ID      string
	Session session.Session

	conn Conn
	send chan []byte

	mu    sync.Mutex
	subs  map[string]struct{}
	order []string
}

// NewClient wraps an upgraded connection.
func NewClient(conn Conn, sess session.Session) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Session: sess,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		subs:    make(map[string]struct{}),
	}
}

// ReadPump consumes inbound frames until the connection drops,
// dispatching subscribe/unsubscribe commands to the hub. Topics failing
// validation or authorization are ignored. Blocks; run as a goroutine
// alongside WritePump.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}

		topics := c.authorizedTopics(cmd.Topics)
		if len(topics) == 0 {
			continue
		}

		switch cmd.Action {
		case ActionSubscribe:
			hub.Subscribe(c, topics)
		case ActionUnsubscribe:
			hub.Unsubscribe(c, topics)
		}
	}
}

// WritePump drains the send channel onto the wire. Returns when the
// channel closes (unregister) or a write fails.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (c *Client) authorizedTopics(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTopic(s)
		if err != nil {
			continue
		}
		if !t.Allowed(c.Session) {
			continue
		}
		out = append(out, t.String())
	}
	return out
}

func (c *Client) addTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return
	}
	c.subs[topic] = struct{}{}
	c.order = append(c.order, topic)
}

func (c *Client) removeTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; !ok {
		return
	}
	delete(c.subs, topic)
	for i, t := range c.order {
		if t == topic {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Client) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}
