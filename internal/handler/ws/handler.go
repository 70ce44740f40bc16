package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/carepoint/portal-api/internal/realtime"
	"github.com/carepoint/portal-api/internal/session"
	"github.com/carepoint/portal-api/pkg/logger"
)

// Handler upgrades authenticated requests to websocket connections and
// hands them to the hub.
type Handler struct {
	hub      *realtime.Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *realtime.Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub: hub,
		log: log.WithComponent("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browsers send Origin on ws:// requests; cross-origin policy
			// is enforced by the CORS layer on the HTTP side.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/realtime/ws", h.Serve)
}

// Serve runs the connection until the peer goes away. The write pump
// gets its own goroutine; reads own the handler goroutine.
func (h *Handler) Serve(c *gin.Context) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		h.log.Error(err, "websocket upgrade failed", "user_id", sess.UserID)
		return
	}

	client := realtime.NewClient(conn, sess)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(h.hub)
}
