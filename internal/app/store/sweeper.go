package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
)

// Sweeper periodically removes expired records from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper returns a sweeper that runs every interval.
func NewSweeper(s Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    s,
		interval: interval,
		log:      logx.Component("sweeper"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("Retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Retention sweeper stopped")
			return
		case now := <-ticker.C:
			w.SweepOnce(ctx, now)
		}
	}
}

// SweepOnce removes records expired at now and records the counts.
func (w *Sweeper) SweepOnce(ctx context.Context, now time.Time) SweepStats {
	stats, err := w.store.Sweep(ctx, now)
	if err != nil {
		w.log.Error().Err(err).Msg("Retention sweep failed")
		return stats
	}

	metrics.RecordsSwept.WithLabelValues("accounts").Add(float64(stats.Accounts))
	metrics.RecordsSwept.WithLabelValues("rooms").Add(float64(stats.Rooms))
	metrics.RecordsSwept.WithLabelValues("messages").Add(float64(stats.Messages))

	if stats.Total() > 0 {
		w.log.Debug().
			Int64("accounts", stats.Accounts).
			Int64("rooms", stats.Rooms).
			Int64("messages", stats.Messages).
			Msg("Expired records removed")
	}
	return stats
}
