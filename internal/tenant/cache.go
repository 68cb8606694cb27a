package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"caresched/internal/model"
)

const orgKeyPrefix = "caresched:org:"

// OrgCache memoizes organization lookups in redis with a TTL. It is an
// explicit per-process object constructed in main and passed by
// reference; cache misses and redis failures both fall through to the
// store, so the cache is never a correctness dependency.
type OrgCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewOrgCache(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *OrgCache {
	return &OrgCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached organization, or ok=false on miss or error.
func (c *OrgCache) Get(ctx context.Context, id string) (*model.Organization, bool) {
	raw, err := c.rdb.Get(ctx, orgKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("org_id", id).Msg("org cache read failed")
		return nil, false
	}
	var org model.Organization
	if err := json.Unmarshal(raw, &org); err != nil {
		c.logger.Warn().Err(err).Str("org_id", id).Msg("org cache entry corrupt")
		return nil, false
	}
	return &org, true
}

// Put stores the organization for the cache TTL.
func (c *OrgCache) Put(ctx context.Context, org *model.Organization) {
	raw, err := json.Marshal(org)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, orgKeyPrefix+org.ID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("org_id", org.ID).Msg("org cache write failed")
	}
}

// Invalidate drops one organization from the cache, for callers that
// just mutated it.
func (c *OrgCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, orgKeyPrefix+id).Err(); err != nil {
		c.logger.Warn().Err(err).Str("org_id", id).Msg("org cache invalidate failed")
	}
}
