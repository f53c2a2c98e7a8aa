package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elchemista/FormRelay/internal/config"
	"github.com/elchemista/FormRelay/internal/events"
	"github.com/elchemista/FormRelay/internal/guard"
	"github.com/elchemista/FormRelay/internal/store"
)

// OpenCapabilities connects the optional backends named in cfg. The returned
// closer releases every connection that was opened.
func OpenCapabilities(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Capabilities, func() error, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		caps    Capabilities
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (Capabilities, func() error, error) {
		_ = closeAll()
		return Capabilities{}, nil, err
	}

	rl := cfg.Guards.RateLimit
	needDB := cfg.Storage.Archive || (rl.Enabled && rl.Store == config.StoreMySQL)

	var db *sql.DB
	if needDB {
		var err error
		db, err = store.Open(ctx, cfg.Storage.MySQLDSN)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)
		logger.Info("mysql connected")
	}

	if rl.Enabled {
		var kv guard.Store
		if rl.Store == config.StoreMySQL {
			if err := store.Migrate(ctx, db); err != nil {
				return fail(err)
			}
			kv = store.NewSQLKV(db)
		} else {
			kv = store.NewMemoryKV(nil)
		}
		caps.Limiter = guard.NewLimiter(rl, kv)
		logger.Info("rate limiting enabled", "limit", rl.Limit, "window", rl.Window(), "store", rl.Store)
	}

	if cfg.Guards.Verification.Enabled {
		caps.Verifier = guard.NewVerifier(cfg.Guards.Verification, nil)
		logger.Info("challenge verification enabled", "endpoint", cfg.Guards.Verification.Endpoint)
	}

	if cfg.Storage.Archive {
		caps.Archive = store.NewArchive(db)
		logger.Info("submission archive enabled")
	}

	if cfg.Events.Enabled() {
		pub, err := events.Open(cfg.Events)
		if err != nil {
			return fail(fmt.Errorf("events: %w", err))
		}
		if pub != nil {
			caps.Events = pub
			closers = append(closers, pub.Close)
			logger.Info("event publishing enabled")
		}
	}

	return caps, closeAll, nil
}
