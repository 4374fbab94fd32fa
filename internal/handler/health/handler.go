package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Check is one named readiness dependency, such as the geo database or the
// unix socket listener.
type Check struct {
	Name string
	Fn   func() error
}

// Handler serves liveness and readiness probes.
type Handler struct {
	checks []Check
}

// NewHandler creates a health handler. With no checks the service is always
// ready.
func NewHandler(checks ...Check) *Handler {
	return &Handler{checks: checks}
}

// Health is the liveness probe endpoint
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready runs every check and reports each result by name. Any failing check
// makes the whole probe return 503.
// GET /ready
func (h *Handler) Ready(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true
	for _, check := range h.checks {
		if check.Fn == nil {
			results[check.Name] = "ok"
			continue
		}
		if err := check.Fn(); err != nil {
			results[check.Name] = err.Error()
			ready = false
			continue
		}
		results[check.Name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}
