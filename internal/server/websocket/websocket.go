package websocket

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"arena-platform/backend/internal/events"
	"arena-platform/backend/internal/rooms"
	"arena-platform/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ClientMessage is the decoded client->server frame. One tagged union,
// routed in a single dispatch step.
type ClientMessage struct {
	Type         string `json:"type"`
	Token        string `json:"token,omitempty"`
	Room         string `json:"room,omitempty"`
	Message      string `json:"message,omitempty"`
	TournamentID string `json:"tournament_id,omitempty"`
	MatchID      string `json:"match_id,omitempty"`
	WinnerID     string `json:"winner_id,omitempty"`
	Score        string `json:"score,omitempty"`
}

// TokenValidator is the external auth collaborator.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// ResultReporter accepts match results arriving over the realtime
// channel; the coordinator implements it.
type ResultReporter interface {
	ReportMatchResult(ctx context.Context, tournamentID, matchID, winnerID, score string) error
}

// MessageLimiter throttles inbound frames per session.
type MessageLimiter interface {
	Allow(clientID string) bool
}

// AllowedOrigins is populated at startup from the environment; tests
// override it directly.
var AllowedOrigins []string

// getAllowedOrigins reads ALLOWED_ORIGINS (comma-separated) or falls
// back to local development origins.
func getAllowedOrigins() []string {
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		parts := strings.Split(raw, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		return origins
	}
	return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
}

// checkOrigin enforces an exact-match origin allowlist. Requests with
// no Origin header are rejected.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func init() {
	AllowedOrigins = getAllowedOrigins()
}

// Upgrader configures the WebSocket upgrader
var Upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}

// Config tunes session behavior.
type Config struct {
	// QueueSize bounds each session's outbound queue.
	QueueSize int
	// AuthGrace is how long an unauthenticated session may live.
	AuthGrace time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{QueueSize: 256, AuthGrace: 15 * time.Second}
}

// Hub owns all live sessions and routes their inbound messages. It is
// the only component besides the event bus holding session references.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	registry *rooms.Registry
	bus      *events.Bus
	auth     TokenValidator
	reporter ResultReporter
	limiter  MessageLimiter
	config   Config
}

// NewHub wires the session hub to its collaborators. reporter and
// limiter may be nil.
func NewHub(registry *rooms.Registry, bus *events.Bus, auth TokenValidator, reporter ResultReporter, limiter MessageLimiter, config Config) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		bus:      bus,
		auth:     auth,
		reporter: reporter,
		limiter:  limiter,
		config:   config,
	}
}

// Deliver implements the event bus delivery hook.
func (h *Hub) Deliver(sessionID string, ev events.Event) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if ok {
		client.Enqueue(ev)
	}
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the HTTP connection and runs the session
// until disconnect. Authentication happens in-band afterwards via the
// authenticate message; a session that never authenticates within the
// grace window is force-dropped.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] upgrade error:", err)
		return
	}

	client := NewClient(uuid.New().String(), conn, h.config.QueueSize)
	h.register(client)

	go client.WritePump()
	go client.ReadPump(h)
}

// register adds the session and arms the auth grace timer. A session
// that never authenticates within the grace window is dropped from the
// hub and from every room.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	c.authDeadline = time.AfterFunc(h.config.AuthGrace, func() {
		if c.Authenticated() {
			return
		}
		log.Printf("[WS] session %s never authenticated, dropping", c.ID)
		c.Reply("auth_error", gin.H{"message": "authentication timed out"})
		h.drop(c)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// drop removes the session from the hub and from every room, releasing
// rooms it emptied. Other subscribers never notice.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()

	for _, roomID := range h.registry.DropSession(c.ID) {
		h.bus.ReleaseRoom(roomID)
	}
	c.shutdown()
}

// handleMessage routes one decoded client frame.
func (h *Hub) handleMessage(c *Client, msg ClientMessage) {
	if h.limiter != nil && !h.limiter.Allow(c.ID) {
		c.Reply("error", gin.H{"message": "rate limit exceeded"})
		return
	}

	switch msg.Type {
	case "authenticate":
		h.handleAuthenticate(c, msg)
	case "join_room":
		h.handleJoinRoom(c, msg)
	case "leave_room":
		h.handleLeaveRoom(c, msg)
	case "send_message":
		h.handleSendMessage(c, msg)
	case "report_result":
		h.handleReportResult(c, msg)
	default:
		c.Reply("error", gin.H{"message": "unknown message type"})
	}
}

func (h *Hub) handleAuthenticate(c *Client, msg ClientMessage) {
	userID, err := h.auth.ValidateToken(msg.Token)
	if err != nil {
		c.Reply("auth_error", gin.H{"message": "invalid token"})
		return
	}
	c.bindPrincipal(userID)
	c.Reply("authenticated", gin.H{"user_id": userID, "session_id": c.ID})
}

// requireAuth replies with an error and returns false for sessions
// that have not completed authentication. Join and publish are both
// gated on it.
func (h *Hub) requireAuth(c *Client) bool {
	if c.Authenticated() {
		return true
	}
	c.Reply("auth_error", gin.H{"message": "authenticate first"})
	return false
}

func (h *Hub) handleJoinRoom(c *Client, msg ClientMessage) {
	if !h.requireAuth(c) {
		return
	}
	if err := validation.ValidateRoomID(msg.Room); err != nil {
		c.Reply("error", gin.H{"message": err.Error()})
		return
	}
	joined := h.registry.Join(c.ID, msg.Room)
	c.Reply("room_joined", gin.H{"room": msg.Room})
	if joined {
		h.bus.Publish(msg.Room, events.TypeParticipantJoined, gin.H{"user_id": c.UserID()})
	}
}

func (h *Hub) handleLeaveRoom(c *Client, msg ClientMessage) {
	if !h.requireAuth(c) {
		return
	}
	if msg.Room == "" {
		c.Reply("error", gin.H{"message": "room is required"})
		return
	}
	if h.registry.Leave(c.ID, msg.Room) {
		h.bus.ReleaseRoom(msg.Room)
	}
	c.Reply("room_left", gin.H{"room": msg.Room})
}

func (h *Hub) handleSendMessage(c *Client, msg ClientMessage) {
	if !h.requireAuth(c) {
		return
	}
	if msg.Room == "" {
		c.Reply("error", gin.H{"message": "room is required"})
		return
	}
	if err := validation.ValidateChatMessage(msg.Message); err != nil {
		c.Reply("error", gin.H{"message": err.Error()})
		return
	}
	if !h.registry.IsMember(c.ID, msg.Room) {
		c.Reply("error", gin.H{"message": "not a member of this room"})
		return
	}
	h.bus.Publish(msg.Room, events.TypeChatMessage, gin.H{
		"user_id": c.UserID(),
		"message": msg.Message,
	})
}

func (h *Hub) handleReportResult(c *Client, msg ClientMessage) {
	if !h.requireAuth(c) {
		return
	}
	if h.reporter == nil {
		c.Reply("error", gin.H{"message": "result reporting unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.reporter.ReportMatchResult(ctx, msg.TournamentID, msg.MatchID, msg.WinnerID, msg.Score); err != nil {
		c.Reply("error", gin.H{"message": err.Error()})
		return
	}
	c.Reply("result_accepted", gin.H{"match_id": msg.MatchID})
}
