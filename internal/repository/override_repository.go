package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adshield/fraudguard/internal/client"
	"github.com/adshield/fraudguard/internal/models"
	"github.com/adshield/fraudguard/internal/util/logger"
	"github.com/redis/go-redis/v9"
)

const overrideCachePrefix = "ov:"

// postgresOverrideRepository persists allow/deny entries in Postgres with
// a Redis read-through cache in front. Lookup runs on every check, so a
// cache failure degrades to a direct DB read, and a DB failure degrades to
// "no override" rather than an error surfaced to the engine.
type postgresOverrideRepository struct {
	db       *sql.DB
	rdb      *client.RedisClient
	cacheTTL time.Duration
}

// NewPostgresOverrideRepository creates the override repository. rdb may
// be nil; caching is then disabled.
func NewPostgresOverrideRepository(db *sql.DB, rdb *client.RedisClient, cacheTTL time.Duration) OverrideRepository {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &postgresOverrideRepository{db: db, rdb: rdb, cacheTTL: cacheTTL}
}

func (r *postgresOverrideRepository) AddEntry(ctx context.Context, ip string, kind models.OverrideType, note string) error {
	if kind != models.OverrideAllow && kind != models.OverrideDeny {
		return fmt.Errorf("invalid override type %q", kind)
	}

	// Upsert replaces any entry of the opposite type, keeping the lists
	// mutually exclusive at write time.
	const q = `
INSERT INTO ip_overrides (ip, kind, note, created_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (ip) DO UPDATE SET kind = EXCLUDED.kind, note = EXCLUDED.note, created_at = now()
`
	if _, err := r.db.ExecContext(ctx, q, ip, string(kind), note); err != nil {
		return fmt.Errorf("add override entry: %w", err)
	}
	r.invalidate(ctx, ip)
	return nil
}

func (r *postgresOverrideRepository) RemoveEntry(ctx context.Context, ip string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ip_overrides WHERE ip = $1`, ip)
	if err != nil {
		return fmt.Errorf("remove override entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.invalidate(ctx, ip)
	return nil
}

func (r *postgresOverrideRepository) LookupEntry(ctx context.Context, ip string) (models.OverrideType, error) {
	if r.rdb != nil {
		var cached string
		hit := false
		// A cache miss is a normal outcome and must not count against the
		// circuit breaker; only transport errors do.
		err := r.rdb.Do(ctx, func(ctx context.Context) error {
			err := r.rdb.GetJSON(ctx, overrideCachePrefix+ip, &cached)
			if err == redis.Nil {
				return nil
			}
			if err == nil {
				hit = true
			}
			return err
		})
		if err == nil && hit {
			return models.OverrideType(cached), nil
		}
		if err != nil {
			logger.Debugf("override cache read failed for %s: %v", ip, err)
		}
	}

	var kind string
	err := r.db.QueryRowContext(ctx, `SELECT kind FROM ip_overrides WHERE ip = $1`, ip).Scan(&kind)
	switch {
	case err == sql.ErrNoRows:
		r.cacheSet(ctx, ip, models.OverrideNone)
		return models.OverrideNone, nil
	case err != nil:
		return models.OverrideNone, fmt.Errorf("lookup override entry: %w", err)
	}

	r.cacheSet(ctx, ip, models.OverrideType(kind))
	return models.OverrideType(kind), nil
}

func (r *postgresOverrideRepository) ListEntries(ctx context.Context, kind models.OverrideType, limit int) ([]models.OverrideEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT ip, kind, note, created_at FROM ip_overrides WHERE kind = $1 ORDER BY created_at DESC LIMIT $2`,
		string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list override entries: %w", err)
	}
	defer rows.Close()

	var out []models.OverrideEntry
	for rows.Next() {
		var e models.OverrideEntry
		var k string
		if err := rows.Scan(&e.IP, &k, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = models.OverrideType(k)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresOverrideRepository) cacheSet(ctx context.Context, ip string, kind models.OverrideType) {
	if r.rdb == nil {
		return
	}
	err := r.rdb.Do(ctx, func(ctx context.Context) error {
		return r.rdb.SetJSON(ctx, overrideCachePrefix+ip, string(kind), r.cacheTTL)
	})
	if err != nil {
		logger.Debugf("override cache write failed for %s: %v", ip, err)
	}
}

// invalidate drops the cached entry so an admin write takes effect
// immediately instead of after the TTL.
func (r *postgresOverrideRepository) invalidate(ctx context.Context, ip string) {
	if r.rdb == nil {
		return
	}
	err := r.rdb.Do(ctx, func(ctx context.Context) error {
		return r.rdb.Del(ctx, overrideCachePrefix+ip).Err()
	})
	if err != nil {
		logger.Debugf("override cache invalidate failed for %s: %v", ip, err)
	}
}
