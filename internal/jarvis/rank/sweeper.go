package rank

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
)

// Registration is one stored binding between a server identity and an
// external game account, as the sweeper needs it. Region and Queue are
// only populated for games whose rank lookup needs them.
type Registration struct {
	ExternalID string
	LocalUID   string
	Region     string
	Queue      string
}

// Lister enumerates the registrations a sweep should visit.
type Lister interface {
	List(ctx context.Context) ([]Registration, error)
}

// Source fetches the authoritative rank for one registration.
type Source interface {
	Rank(ctx context.Context, reg Registration) (Rank, error)
}

// Directory resolves a stored unique id to a currently connected client.
// Implementations return ErrNotFound for users not on the server.
type Directory interface {
	FindByUID(ctx context.Context, uid string) (*commands.Caller, error)
}

// SweeperConfig configures the periodic reconciliation sweep.
type SweeperConfig struct {
	// Game labels log lines from this sweeper.
	Game string
	// Interval is how often to sweep. Defaults to 1h.
	Interval time.Duration
	// Notify is called for users whose badge changed. If nil, changes
	// are only logged.
	Notify func(ctx context.Context, caller *commands.Caller, change Change)
}

// Sweeper periodically reconciles every registered, reachable user.
type Sweeper struct {
	engine *Engine
	lister Lister
	source Source
	dir    Directory
	cfg    SweeperConfig
}

// NewSweeper creates a Sweeper.
func NewSweeper(engine *Engine, lister Lister, source Source, dir Directory, cfg SweeperConfig) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{engine: engine, lister: lister, source: source, dir: dir, cfg: cfg}
}

// Run starts the sweep loop. Blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.Info("rank sweeper starting", "game", s.cfg.Game, "interval", s.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("rank sweeper stopping", "game", s.cfg.Game)
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("rank sweep failed", "game", s.cfg.Game, "err", err)
			}
		}
	}
}

// Sweep runs a single reconciliation pass over every registration.
// Unreachable users and per-user lookup failures are skipped; they will be
// retried on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	regs, err := s.lister.List(ctx)
	if err != nil {
		return err
	}

	for _, reg := range regs {
		caller, err := s.dir.FindByUID(ctx, reg.LocalUID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("rank sweep: resolve user", "game", s.cfg.Game, "uid", reg.LocalUID, "err", err)
			continue
		}

		r, err := s.source.Rank(ctx, reg)
		if err != nil {
			slog.Warn("rank sweep: rank lookup", "game", s.cfg.Game, "account", reg.ExternalID, "err", err)
			continue
		}

		change, err := s.engine.Reconcile(ctx, caller.DatabaseID, caller.Groups, r)
		if err != nil {
			slog.Warn("rank sweep: reconcile", "game", s.cfg.Game, "uid", reg.LocalUID, "err", err)
			continue
		}
		if change.Outcome == NoChange {
			continue
		}

		slog.Info("rank badge updated",
			"game", s.cfg.Game,
			"uid", reg.LocalUID,
			"rank", change.RankName,
			"outcome", int(change.Outcome))
		if s.cfg.Notify != nil {
			s.cfg.Notify(ctx, caller, change)
		}
	}

	return nil
}
