// Package cmd contains commands for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Simooonnnnn/Novascope-sub001/app/feed"
	"github.com/Simooonnnnn/Novascope-sub001/app/reader"
	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	"github.com/Simooonnnnn/Novascope-sub001/app/summary"
	"github.com/Simooonnnnn/Novascope-sub001/pkg/logx"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Run is a command to run the reader.
type Run struct {
	StorePath string `long:"store-path" env:"STORE_PATH" default:"./var" description:"parent dir for bolt files"`

	Feed struct {
		Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"15s" description:"timeout for feed requests"`
		CacheTTL time.Duration `long:"cache-ttl" env:"CACHE_TTL" default:"5m" description:"ttl of memoized feed responses"`
	} `group:"feed" namespace:"feed" env-namespace:"FEED"`

	Summary struct {
		BaseURL     string        `long:"base-url" env:"BASE_URL" default:"http://localhost:8080/v1" description:"OpenAI-compatible endpoint serving the model"`
		Model       string        `long:"model" env:"MODEL" default:"novascope-local" description:"model name"`
		MaxTokens   int           `long:"max-tokens" env:"MAX_TOKENS" default:"256" description:"max tokens for a summary"`
		Timeout     time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"summary deadline before falling back"`
		InitTimeout time.Duration `long:"init-timeout" env:"INIT_TIMEOUT" default:"30s" description:"deadline for model warm-up"`
		ModelsDir   string        `long:"models-dir" env:"MODELS_DIR" default:"./var/models" description:"dir for imported model assets"`
	} `group:"summary" namespace:"summary" env-namespace:"SUMMARY"`
}

// Execute runs the command.
func (r Run) Execute(_ []string) error {
	lg := slog.Default()

	s, err := store.NewBolt(r.StorePath)
	if err != nil {
		return fmt.Errorf("make store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			lg.Error("close bolt store", slog.Any("err", err))
		}
	}()

	fetchClient := requester.New(http.Client{Timeout: r.Feed.Timeout},
		middleware.Header("User-Agent", "novascope/1.0"),
		logx.LoggingRoundTripper(
			lg.With(slog.String("prefix", "feed-http")),
			logx.RoundTripperOpts{Level: slog.LevelDebug},
		),
	).Client()

	models, err := summary.NewModels(
		lg.With(slog.String("prefix", "models")),
		requester.New(http.Client{},
			middleware.Header("User-Agent", "novascope/1.0"),
			logx.LoggingRoundTripper(
				lg.With(slog.String("prefix", "models-http")),
				logx.RoundTripperOpts{Level: slog.LevelDebug},
			),
		).Client(),
		r.Summary.ModelsDir,
	)
	if err != nil {
		return fmt.Errorf("make models manager: %w", err)
	}

	summarizer := summary.NewService(
		lg.With(slog.String("prefix", "summary")),
		requester.New(http.Client{},
			logx.LoggingRoundTripper(
				lg.With(slog.String("prefix", "summary-http")),
				logx.RoundTripperOpts{Level: slog.LevelDebug, SecretHeaders: []string{"Authorization"}},
			),
		).Client(),
		r.Summary.BaseURL,
		r.Summary.Model,
		r.Summary.MaxTokens,
		models,
	)

	ctrl := reader.NewController(reader.Config{
		Logger:         lg.With(slog.String("prefix", "reader")),
		Store:          s,
		Fetcher:        feed.NewFetcher(lg.With(slog.String("prefix", "feed")), fetchClient, r.Feed.CacheTTL),
		Summarizer:     summarizer,
		SummaryTimeout: r.Summary.Timeout,
		InitTimeout:    r.Summary.InitTimeout,
	})
	defer ctrl.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sig:
			slog.Warn("caught signal, stopping", slog.String("signal", sig.String()))
			stop()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ewg.Go(func() error {
		lg.Info("starting reader")
		ctrl.Run(ctx)
		lg.Warn("reader stopped")
		return nil
	})
	ewg.Go(func() error {
		// stand-in consumer until a real UI observes the snapshot stream
		watch := ctrl.Watch()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snap, ok := <-watch:
				if !ok {
					return nil
				}
				lg.Info("snapshot published",
					slog.Int("articles", len(snap.Articles)),
					slog.Int("bookmarked", len(snap.Bookmarked)),
					slog.Bool("loading", snap.Loading),
					slog.Bool("refreshing", snap.Refreshing),
					slog.String("error", snap.Error),
				)
			}
		}
	})

	if err := ewg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
