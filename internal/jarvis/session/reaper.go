package session

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig configures the expiry sweep.
type ReaperConfig struct {
	// Interval is how often to scan for stale sessions. Defaults to 30s.
	Interval time.Duration
	// MaxAge is the maximum session lifetime. Defaults to 3 minutes.
	MaxAge time.Duration
	// OnExpire is called exactly once for each session the sweep removed,
	// outside the store lock. Typically sends the owner an expiry notice.
	OnExpire func(ctx context.Context, s *Session)
}

// Reaper periodically expires sessions idle past their deadline. It is the
// only mechanism besides explicit completion that removes a session, so an
// abandoned wizard can never leak.
type Reaper struct {
	store *Store
	cfg   ReaperConfig
}

// NewReaper creates a Reaper over the given store.
func NewReaper(store *Store, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 3 * time.Minute
	}
	return &Reaper{store: store, cfg: cfg}
}

// Run starts the sweep loop. Blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.Info("session reaper starting", "interval", r.cfg.Interval, "max_age", r.cfg.MaxAge)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session reaper stopping")
			return
		case <-ticker.C:
			r.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs a single expiry pass at the given instant and returns how many
// sessions were removed. Removal is identity-checked so a session completed
// and restarted between snapshot and delete is left alone.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) int {
	removed := 0
	for _, s := range r.store.Expired(now, r.cfg.MaxAge) {
		if !r.store.EndIfMatch(s.OwnerUID, s.ID) {
			continue
		}
		removed++
		slog.Info("session expired", "uid", s.OwnerUID, "state", s.State, "age", s.Age(now))
		if r.cfg.OnExpire != nil {
			r.cfg.OnExpire(ctx, s)
		}
	}
	return removed
}
