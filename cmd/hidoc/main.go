package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Schedules resolve times in their own zones; embed tzdata so the
	// binary works in containers without /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/api"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/config"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/reminder"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(store.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("store ready")

	hub := websocket.NewHub(log)
	go hub.Run()

	notifiers := reminder.MultiNotifier{reminder.NewHubNotifier(hub)}
	if cfg.Pushover.Enabled() {
		notifiers = append(notifiers, reminder.NewPushoverNotifier(
			cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Pushover.RatePerMin, log))
		log.Info().Msg("pushover delivery enabled")
	}

	// The dispatcher calls back into the coordinator when a timer fires,
	// so the coordinator variable has to exist before the dispatcher does.
	var coord *reminder.Coordinator
	disp := reminder.NewTimerDispatcher(func(id string, p reminder.Payload) {
		coord.HandleFired(id, p)
	}, log)
	coord = reminder.NewCoordinator(st, disp, notifiers, log)

	// In-process timers do not survive restarts; arm everything now.
	if err := coord.RearmAll(ctx); err != nil {
		log.Error().Err(err).Msg("initial rearm failed")
	}

	resync, err := reminder.StartResync(cfg.Resync.Spec, coord, log)
	if err != nil {
		log.Fatal().Err(err).Msg("start resync")
	}

	router := api.SetupRouter(st, coord, hub, cfg, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	resync.Stop()
	disp.Stop()
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
