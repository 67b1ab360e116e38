package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/adcp/salesagent/internal/auth"
	"github.com/adcp/salesagent/internal/config"
	"github.com/adcp/salesagent/internal/events"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/adcp/salesagent/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// wsClient is one live connection and the identity it authenticated with.
type wsClient struct {
	conn     *websocket.Conn
	tenantID string
	role     string
	mu       sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub fans media buy events out to connections of the same tenant and
// workflow events out to reviewers.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*wsClient // keyed by tenant id
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*wsClient),
	}
}

// Start subscribes the hub to both event streams. Delivery stops when ctx is done.
func (h *WSHub) Start(ctx context.Context) {
	for _, stream := range []string{events.StreamMediaBuy, events.StreamWorkflow} {
		if err := h.subscriber.Subscribe(ctx, stream, h.dispatch); err != nil {
			h.log.Error("ws hub subscription failed", zap.String("stream", stream), zap.Error(err))
		}
	}
}

func (h *WSHub) dispatch(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	tenantID := event.TenantID()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.connections[tenantID] {
		if !wants(client.role, event.Type) {
			continue
		}
		if err := client.send(data); err != nil {
			h.log.Debug("ws write failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
}

// wants reports whether a role receives an event type.
func wants(role, eventType string) bool {
	if eventType == events.EventWorkflowStepUpdated {
		return rbac.HasPermission(role, rbac.PermReadWorkflow)
	}
	return rbac.HasPermission(role, rbac.PermReadMediaBuy)
}

func (h *WSHub) register(client *wsClient) {
	h.mu.Lock()
	h.connections[client.tenantID] = append(h.connections[client.tenantID], client)
	h.mu.Unlock()
}

func (h *WSHub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.connections[client.tenantID]
	for i, c := range clients {
		if c == client {
			h.connections[client.tenantID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.connections[client.tenantID]) == 0 {
		delete(h.connections, client.tenantID)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	client := &wsClient{conn: conn, tenantID: claims.TenantID, role: middleware.EffectiveRole(h.cfg, claims)}
	h.register(client)
	defer func() {
		h.unregister(client)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
