package pgtier

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically reclaims expired rows from the semantic tier. The
// sweep is an optimization only: lazy expiry already keeps expired records
// out of lookup results.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper for the store. A non-positive interval
// defaults to 10 minutes.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   log.With().Str("component", "pgtier-sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine. It runs until Stop is
// called or the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	n, err := s.store.DeleteExpired(sctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("removed", n).Msg("Swept expired records")
	}
}
