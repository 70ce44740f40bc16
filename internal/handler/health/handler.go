package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

// Handler serves liveness and readiness probes.
type Handler struct {
	pingers map[string]Pinger
}

// NewHandler builds the probe handler. pingers maps a dependency name
// to its check; pass none for a handler that is always ready.
func NewHandler(pingers map[string]Pinger) *Handler {
	return &Handler{pingers: pingers}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Liveness)
	r.GET("/health/ready", h.Readiness)
}

func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// Readiness pings every dependency and reports them individually.
func (h *Handler) Readiness(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}
	for name, ping := range h.pingers {
		if err := ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = "DOWN"
			continue
		}
		deps[name] = "UP"
	}

	overall := "UP"
	if status != http.StatusOK {
		overall = "DOWN"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}
