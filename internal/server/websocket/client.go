package websocket

import (
	"log"
	"sync"
	"time"

	"arena-platform/backend/internal/events"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// A connection with no pong (or any read) within this window is
	// considered dead and dropped.
	pongWait = 60 * time.Second
	// Ping interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Inbound messages are small control frames.
	maxMessageSize = 4096
)

// queued is one outbound item: either a room event or a direct reply
// to this session. Replies have no event type and are never dropped.
type queued struct {
	msg WSMessage
	typ events.Type
}

func (q queued) droppable() bool {
	return q.typ != "" && !q.typ.Critical()
}

// Client is one realtime connection session. It owns its bounded
// outbound queue and its liveness state; nothing outside the hub and
// the event bus holds a long-lived reference to it.
type Client struct {
	ID   string
	Conn *websocket.Conn

	mu       sync.Mutex
	userID   string
	queue    []queued
	maxQueue int
	notify   chan struct{}
	done     chan struct{}
	closing  bool

	authDeadline *time.Timer
}

// NewClient creates a session with the given outbound queue capacity.
func NewClient(id string, conn *websocket.Conn, queueSize int) *Client {
	if queueSize < 2 {
		queueSize = 2
	}
	return &Client{
		ID:       id,
		Conn:     conn,
		maxQueue: queueSize,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// UserID returns the authenticated principal id, empty before
// authentication.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Authenticated reports whether a principal is bound to the session.
func (c *Client) Authenticated() bool {
	return c.UserID() != ""
}

func (c *Client) bindPrincipal(userID string) {
	c.mu.Lock()
	c.userID = userID
	timer := c.authDeadline
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// Enqueue appends a room event to the outbound queue. When the queue
// is full (slow consumer) the oldest non-critical event is dropped and
// a single queue_overflow marker takes its place, telling the client
// it missed data and should resynchronize. Never blocks.
func (c *Client) Enqueue(ev events.Event) {
	c.push(queued{
		msg: WSMessage{Type: string(ev.Type), Payload: ev},
		typ: ev.Type,
	})
}

// Reply enqueues a direct response to this session, outside any room.
func (c *Client) Reply(msgType string, payload interface{}) {
	c.push(queued{msg: WSMessage{Type: msgType, Payload: payload}})
}

func (c *Client) push(q queued) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	if len(c.queue) >= c.maxQueue {
		c.evict()
	}
	c.queue = append(c.queue, q)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// evict frees room for one more item, preferring the oldest droppable
// event and falling back to the oldest item outright if everything
// queued is critical. One overflow marker is kept at the first drop
// position; further drops while a marker is pending stay silent, since
// a single marker already means "resync".
func (c *Client) evict() {
	hasMarker := false
	for _, q := range c.queue {
		if q.typ == events.TypeQueueOverflow {
			hasMarker = true
			break
		}
	}

	need := len(c.queue) - c.maxQueue + 1
	if !hasMarker {
		need++ // one extra slot for the marker itself
	}

	pos := -1
	for need > 0 && len(c.queue) > 0 {
		idx := 0
		for i, q := range c.queue {
			if q.droppable() {
				idx = i
				break
			}
		}
		if pos == -1 || idx < pos {
			pos = idx
		}
		c.queue = append(c.queue[:idx], c.queue[idx+1:]...)
		need--
	}

	if !hasMarker && pos >= 0 {
		marker := queued{
			msg: WSMessage{Type: string(events.TypeQueueOverflow), Payload: events.Event{
				Type: events.TypeQueueOverflow,
				At:   time.Now().UTC(),
			}},
			typ: events.TypeQueueOverflow,
		}
		c.queue = append(c.queue[:pos], append([]queued{marker}, c.queue[pos:]...)...)
	}
}

// takeBatch drains the queue for writing.
func (c *Client) takeBatch() []queued {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.queue
	c.queue = nil
	return batch
}

// shutdown marks the session closing; enqueues after this are ignored.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	c.closing = true
	close(c.done)
}

// WritePump pushes queued messages to the peer and keeps the
// connection alive with pings. One writer per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.notify:
			for _, q := range c.takeBatch() {
				c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.Conn.WriteJSON(q.msg); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump consumes inbound messages and dispatches them through the
// hub. Exits on any read error or missed heartbeat, which drops the
// session from every room.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.drop(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] session %s read error: %v", c.ID, err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(c, msg)
	}
}
