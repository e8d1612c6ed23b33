package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adshield/fraudguard/internal/models"
)

// postgresAuditRepository appends one row per classification call and
// maintains per-day verdict counters in the same transaction.
type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) RecordCheck(ctx context.Context, rec models.CheckRecord) error {
	flags, err := json.Marshal(rec.Flags)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback()

	const insertCheck = `
INSERT INTO fraud_checks
  (request_id, ip, device_type, browser, is_automated, is_headless, is_fake_mobile,
   mouse_moves, touch_events, classification, score, reason, flags, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`
	if _, err := tx.ExecContext(ctx, insertCheck,
		rec.RequestID, rec.IP, string(rec.DeviceType), rec.Browser,
		rec.IsAutomated, rec.IsHeadless, rec.IsFakeMobile,
		rec.MouseMoves, rec.TouchEvents,
		string(rec.Classification), rec.Score, rec.Reason, flags, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert fraud check: %w", err)
	}

	const upsertDaily = `
INSERT INTO fraud_daily_stats (day, checks, good, warn, bad)
VALUES ($1, 1, $2, $3, $4)
ON CONFLICT (day) DO UPDATE SET
  checks = fraud_daily_stats.checks + 1,
  good = fraud_daily_stats.good + EXCLUDED.good,
  warn = fraud_daily_stats.warn + EXCLUDED.warn,
  bad = fraud_daily_stats.bad + EXCLUDED.bad
`
	day := rec.CreatedAt.UTC().Truncate(24 * time.Hour)
	good, warn, bad := 0, 0, 0
	switch rec.Classification {
	case models.ClassGood:
		good = 1
	case models.ClassWarn:
		warn = 1
	case models.ClassBad:
		bad = 1
	}
	if _, err := tx.ExecContext(ctx, upsertDaily, day, good, warn, bad); err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}

	return tx.Commit()
}

func (r *postgresAuditRepository) DailyStats(ctx context.Context, day time.Time) (DailyStats, error) {
	var s DailyStats
	s.Day = day.UTC().Truncate(24 * time.Hour)

	err := r.db.QueryRowContext(ctx,
		`SELECT checks, good, warn, bad FROM fraud_daily_stats WHERE day = $1`, s.Day,
	).Scan(&s.Checks, &s.Good, &s.Warn, &s.Bad)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("query daily stats: %w", err)
	}
	return s, nil
}
