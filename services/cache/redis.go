package cachesvc

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

const defaultPrefix = "approvals:stats:"

// RedisStatsCache keeps per-variant status counts in Redis, as JSON, for `ttl`.
type RedisStatsCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ workflow.StatsCache = (*RedisStatsCache)(nil) // interface compliance check

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisStatsCache(client redis.UniversalClient, conf *core.Config) *RedisStatsCache {
	return &RedisStatsCache{client: client, prefix: defaultPrefix, ttl: conf.Redis.StatsTTL}
}

func (c *RedisStatsCache) name(v workflow.Variant) string {
	if v == "" {
		return "all"
	}
	return string(v)
}

func (c *RedisStatsCache) versionKey(v workflow.Variant) string {
	return c.prefix + "version:" + c.name(v)
}

func (c *RedisStatsCache) key(v workflow.Variant, version int64) string {
	return c.prefix + c.name(v) + ":" + strconv.FormatInt(version, 10)
}

// StatsVersion returns the current entry version of `v`; 0 until first invalidated.
func (c *RedisStatsCache) StatsVersion(ctx context.Context, v workflow.Variant) (int64, error) {
	version, err := c.client.Get(ctx, c.versionKey(v)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading stats version")
	}
	return version, nil
}

func (c *RedisStatsCache) GetStats(ctx context.Context, v workflow.Variant, version int64) (workflow.Stats, bool, error) {
	b, err := c.client.Get(ctx, c.key(v, version)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return workflow.Stats{}, false, nil
		}
		return workflow.Stats{}, false, errors.Wrap(err, "reading stats")
	}
	var st workflow.Stats
	if err = json.Unmarshal(b, &st); err != nil {
		// unreadable entry: treat as a miss, it gets overwritten
		return workflow.Stats{}, false, nil
	}
	return st, true, nil
}

// SetStats stores `st` under `version`. Entries of a superseded version are never read
// again and expire with the TTL.
func (c *RedisStatsCache) SetStats(ctx context.Context, st workflow.Stats, version int64) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding stats")
	}
	if err = c.client.Set(ctx, c.key(st.Variant, version), b, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "writing stats")
	}
	return nil
}

// InvalidateStats bumps the version of `v` along with the cross-variant one.
func (c *RedisStatsCache) InvalidateStats(ctx context.Context, v workflow.Variant) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(v))
		if v != "" {
			pipe.Incr(ctx, c.versionKey(""))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "invalidating stats")
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisStatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
