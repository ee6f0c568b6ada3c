package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/webrana-inbox-backend/internal/logger"
)

func limitedServer(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(mw)
	e.POST("/api/inbound", func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})
	return e
}

func post(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/inbound", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenLimited(t *testing.T) {
	e := limitedServer(RateLimiter(NewIPRateLimiter(1, 3), nil))

	for i := range 3 {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code, "request %d", i)
	}
	rec := post(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_RetryAfterReflectsRate(t *testing.T) {
	e := limitedServer(RateLimiter(NewIPRateLimiter(rate.Every(30*time.Second), 1), nil))

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.3").Code)
	rec := post(e, "10.0.0.3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, []string{"29", "30"}, rec.Header().Get("Retry-After"))
}

func TestRateLimiter_ProbesNeverLimited(t *testing.T) {
	e := echo.New()
	e.Use(RateLimiter(NewIPRateLimiter(1, 1), nil))
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.4")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_RejectionDoesNotConsumeCapacity(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, 1)
	l.now = func() time.Time { return now }
	e := limitedServer(RateLimiter(l, nil))

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.5").Code)
	for range 3 {
		assert.Equal(t, http.StatusTooManyRequests, post(e, "10.0.0.5").Code)
	}
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.5").Code)
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	e := limitedServer(RateLimiter(NewIPRateLimiter(1, 1), nil))

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.2").Code)
}

func TestRateLimiter_LogsEvent(t *testing.T) {
	var buf bytes.Buffer
	events := logger.NewEventLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	e := limitedServer(RateLimiter(NewIPRateLimiter(1, 1), events))

	post(e, "10.0.0.9")
	post(e, "10.0.0.9")

	assert.Contains(t, buf.String(), "rate_limit_exceeded")
	assert.Contains(t, buf.String(), "10.0.0.9")
}

func TestIPRateLimiter_GetLimiterReusesPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(5), 5)

	a := l.GetLimiter("1.1.1.1")
	assert.Same(t, a, l.GetLimiter("1.1.1.1"))
	assert.NotSame(t, a, l.GetLimiter("2.2.2.2"))
	assert.Equal(t, 2, l.Size())
}

func TestIPRateLimiter_PruneIdle(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(rate.Limit(5), 5)
	l.now = func() time.Time { return now }

	l.GetLimiter("idle")
	now = now.Add(9 * time.Minute)
	l.GetLimiter("active")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, l.Prune(10*time.Minute))
	assert.Equal(t, 1, l.Size())
}
