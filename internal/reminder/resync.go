package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Resync periodically re-runs the full re-arm pass so persisted triggers
// and armed timers recover from drift: a suspended process, a missed
// timer, rows edited outside the API.
type Resync struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// StartResync schedules RearmAll on the given cron spec ("@every 1m",
// "*/5 * * * *") and starts the scheduler.
func StartResync(spec string, coord *Coordinator, log zerolog.Logger) (*Resync, error) {
	logger := log.With().Str("component", "resync").Logger()

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := coord.RearmAll(ctx); err != nil {
			logger.Error().Err(err).Msg("rearm pass failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}

	c.Start()
	logger.Info().Str("spec", spec).Msg("resync started")
	return &Resync{cron: c, log: logger}, nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (r *Resync) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
