// Package cache provides a Redis-backed cache for reconciliation
// reports. Closed sessions are never re-closed, so their reports are
// immutable and cache entirely safely; in-progress sessions are never
// cached. A miss or a Redis failure falls back to recomputing - the
// cache is an optimization, never an authority.
package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirlondev/magasin-sub002/register"
)

type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *ReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportCache{client: client, ttl: ttl}
}

func (c *ReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ReportCache) Close() error {
	return c.client.Close()
}

func key(id register.SessionID) string {
	return "reconciliation:report:" + string(id)
}

func (c *ReportCache) Get(ctx context.Context, id register.SessionID) (*register.ReconciliationReport, bool, error) {
	val, err := c.client.Get(ctx, key(id)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report register.ReconciliationReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *ReportCache) Set(ctx context.Context, report *register.ReconciliationReport) error {
	if report == nil || !report.Status.Terminal() {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(report.SessionID), payload, c.ttl).Err()
}
