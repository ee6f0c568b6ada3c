package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// TeamSource is the authoritative team lookup
type TeamSource interface {
	GetByDomain(ctx context.Context, domain string) (*models.Team, error)
}

// Event invalidates cached team lookups
type Event interface {
	teamEvent()
}

// TeamUpserted is raised after a team is created or changed
type TeamUpserted struct{ Domain string }

// TeamRemoved is raised after a team is deleted
type TeamRemoved struct{ Domain string }

// AllTeamsInvalidated drops every cached team
type AllTeamsInvalidated struct{}

func (TeamUpserted) teamEvent()        {}
func (TeamRemoved) teamEvent()         {}
func (AllTeamsInvalidated) teamEvent() {}

// TeamCache caches domain to team lookups. Misses for unknown domains are
// not cached so a newly registered domain routes immediately.
type TeamCache struct {
	source  TeamSource
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTeamCache creates a TeamCache
func NewTeamCache(source TeamSource, store Store, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *TeamCache {
	return &TeamCache{
		source:  source,
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func domainKey(domain string) string {
	return "team:domain:" + strings.ToLower(strings.TrimSpace(domain))
}

// GetByDomain returns the cached team or loads it from the source.
// Store failures fall back to the source.
func (c *TeamCache) GetByDomain(ctx context.Context, domain string) (*models.Team, error) {
	key := domainKey(domain)

	if data, ok, err := c.store.Get(ctx, key); err != nil {
		c.warn("team cache read failed", key, err)
	} else if ok {
		var team models.Team
		if err := json.Unmarshal(data, &team); err == nil {
			c.metrics.CacheLookup(true)
			return &team, nil
		}
		c.warn("corrupt team cache entry", key, err)
	}
	c.metrics.CacheLookup(false)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		team, err := c.source.GetByDomain(ctx, domain)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(team); err == nil {
			if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
				c.warn("team cache write failed", key, err)
			}
		}
		return team, nil
	})
	if err != nil {
		return nil, err
	}
	team := *v.(*models.Team)
	return &team, nil
}

// Invalidate applies an invalidation event
func (c *TeamCache) Invalidate(ctx context.Context, evt Event) error {
	switch e := evt.(type) {
	case TeamUpserted:
		return c.store.Delete(ctx, domainKey(e.Domain))
	case TeamRemoved:
		return c.store.Delete(ctx, domainKey(e.Domain))
	case AllTeamsInvalidated:
		return c.store.Clear(ctx)
	default:
		return nil
	}
}

func (c *TeamCache) warn(msg, key string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.String("key", key), slog.Any("error", err))
	}
}
