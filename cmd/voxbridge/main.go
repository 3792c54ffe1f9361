// Command voxbridge runs the voice gateway: it answers Twilio calls, streams
// their audio through speech and reasoning services, and speaks replies back.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxbridge/voxbridge/pkg/core/call"
	"github.com/voxbridge/voxbridge/pkg/gateway/config"
	"github.com/voxbridge/voxbridge/pkg/gateway/lifecycle"
	"github.com/voxbridge/voxbridge/pkg/gateway/metrics"
	"github.com/voxbridge/voxbridge/pkg/gateway/server"
	"github.com/voxbridge/voxbridge/pkg/gateway/store"
	"github.com/voxbridge/voxbridge/pkg/gateway/telephony"
	"github.com/voxbridge/voxbridge/pkg/reason/gemini"
	"github.com/voxbridge/voxbridge/pkg/voice/cartesia"
)

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lc := &lifecycle.Lifecycle{}
	m := metrics.New(cfg.MetricsNamespace)

	var (
		st       *store.Store
		recorder call.Recorder
	)
	if cfg.DatabaseURL != "" {
		if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		st, err = store.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		recorder = st
	} else {
		logger.Warn("VOX_DATABASE_URL not set; transcripts will not be persisted")
	}

	engine := cartesia.New(cfg.CartesiaAPIKey, cartesia.Options{Voice: cfg.CartesiaVoice})
	reasoner, err := gemini.New(ctx, cfg.GeminiAPIKey, gemini.Options{Model: cfg.GeminiModel})
	if err != nil {
		return fmt.Errorf("create reasoner: %w", err)
	}

	twilio := telephony.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
	tel := telephony.NewHandler(telephony.Options{
		PublicHost:      cfg.PublicHost,
		WriteTimeout:    cfg.WSWriteTimeout,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
	}, twilio, lc, logger)

	reg := call.NewRegistry(call.Config{
		Greeting:             cfg.Greeting,
		FallbackUtterance:    cfg.FallbackUtterance,
		SilenceTimeout:       cfg.SilenceTimeout,
		TranscribeTimeout:    cfg.TranscribeTimeout,
		ReasonTimeout:        cfg.ReasonTimeout,
		SpeakTimeout:         cfg.SpeakTimeout,
		SpeechStartThreshold: cfg.SpeechThreshold,
		MinSilence:           cfg.MinSilence,
		MaxUtterance:         cfg.MaxUtterance,
	}, call.RegistryDeps{
		Engine:    engine,
		Reasoner:  reasoner,
		Transport: tel,
		Recorder:  recorder,
		Sink:      m,
		Logger:    logger,
	})
	tel.SetRegistry(reg)

	srv := server.New(cfg, server.Deps{
		Lifecycle: lc,
		Registry:  reg,
		Telephony: tel,
		Metrics:   m,
		Store:     st,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	logger.Info("starting gateway",
		"addr", cfg.Addr, "public_host", cfg.PublicHost, "persistence", st != nil)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	lc.SetDraining(true)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer drainCancel()
	if !reg.Shutdown(drainCtx) {
		logger.Warn("sessions did not drain before deadline")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "voxbridge: %v\n", err)
		os.Exit(1)
	}
}
