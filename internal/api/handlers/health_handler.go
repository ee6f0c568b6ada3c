package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const checkTimeout = 2 * time.Second

// Pinger is an optional dependency checked by /health and /ready, such as
// the redis team cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the state of the database and other dependencies
type HealthHandler struct {
	checks  map[string]Pinger
	order   []string
	started time.Time
}

// NewHealthHandler creates a new HealthHandler. The database is always
// checked; extra checks are reported by name.
func NewHealthHandler(db *gorm.DB, checks map[string]Pinger) *HealthHandler {
	all := map[string]Pinger{"database": PingFunc(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})}
	extra := make([]string, 0, len(checks))
	for name, p := range checks {
		if name == "database" || p == nil {
			continue
		}
		all[name] = p
		extra = append(extra, name)
	}
	sort.Strings(extra)

	return &HealthHandler{
		checks:  all,
		order:   append([]string{"database"}, extra...),
		started: time.Now(),
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Uptime   string            `json:"uptime"`
}

// check pings every dependency concurrently. The reported failure is the
// first in check order, the database first.
func (h *HealthHandler) check(ctx context.Context) (map[string]string, string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		failed = map[string]bool{}
		g      errgroup.Group
	)
	for name, p := range h.checks {
		g.Go(func() error {
			if err := p.Ping(ctx); err != nil {
				mu.Lock()
				failed[name] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	services := make(map[string]string, len(h.order))
	first := ""
	for _, name := range h.order {
		if failed[name] {
			services[name] = "unhealthy"
			if first == "" {
				first = name
			}
			continue
		}
		services[name] = "healthy"
	}
	return services, first
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	services, failed := h.check(c.Request().Context())

	resp := HealthResponse{
		Status:   "healthy",
		Services: services,
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
	}
	if failed != "" {
		resp.Status = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	if _, failed := h.check(c.Request().Context()); failed != "" {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": failed + " ping failed",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
