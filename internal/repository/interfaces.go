package repository

import (
	"context"
	"errors"
	"time"

	"github.com/adshield/fraudguard/internal/models"
)

var ErrNotFound = errors.New("not found")

// OverrideRepository persists the manual IP allow/deny lists. Adding an IP
// to one list removes it from the other; exclusivity is enforced at write
// time so lookups stay a single read.
type OverrideRepository interface {
	AddEntry(ctx context.Context, ip string, kind models.OverrideType, note string) error
	RemoveEntry(ctx context.Context, ip string) error
	LookupEntry(ctx context.Context, ip string) (models.OverrideType, error)
	ListEntries(ctx context.Context, kind models.OverrideType, limit int) ([]models.OverrideEntry, error)
}

// AuditRepository is the write-sink for per-check audit records and the
// daily aggregate counters consumed by the admin dashboard. Writes are
// fire-and-forget from the engine's perspective.
type AuditRepository interface {
	RecordCheck(ctx context.Context, rec models.CheckRecord) error
	DailyStats(ctx context.Context, day time.Time) (DailyStats, error)
}

// DailyStats aggregates one day's verdicts.
type DailyStats struct {
	Day    time.Time `json:"day"`
	Checks int64     `json:"checks"`
	Good   int64     `json:"good"`
	Warn   int64     `json:"warn"`
	Bad    int64     `json:"bad"`
}
