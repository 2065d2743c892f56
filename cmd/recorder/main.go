// recorder authenticates against the broker, connects the realtime stream,
// and archives every forwarded message into PostgreSQL.
// Usage: go run ./cmd/recorder --config configs/streamer.example.yaml --quotes 5479,26268
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/broker-stream/internal/api"
	"github.com/rickgao/broker-stream/internal/auth"
	"github.com/rickgao/broker-stream/internal/config"
	"github.com/rickgao/broker-stream/internal/connection"
	"github.com/rickgao/broker-stream/internal/database"
	"github.com/rickgao/broker-stream/internal/version"
	"github.com/rickgao/broker-stream/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/streamer.example.yaml", "path to config file")
	quotes := flag.String("quotes", "", "comma-separated orderbook ids for quote updates")
	trades := flag.String("trades", "", "comma-separated orderbook ids for trade updates")
	orderdepths := flag.String("orderdepths", "", "comma-separated orderbook ids for depth updates")
	orders := flag.String("orders", "", "comma-separated account ids for order updates")
	deals := flag.String("deals", "", "comma-separated account ids for deal updates")
	positions := flag.String("positions", "", "comma-separated account ids for position updates")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBaseDelay),
	)

	authenticator := auth.New(apiClient, auth.WithLogger(logger))
	if err := authenticator.SetCredentials(auth.Credentials{
		Username:       cfg.Credentials.Username,
		Password:       cfg.Credentials.Password,
		TOTPSecret:     cfg.Credentials.TOTPSecret,
		TimeoutMinutes: cfg.Credentials.TimeoutMinutes,
	}); err != nil {
		logger.Error("invalid credentials", "error", err)
		os.Exit(1)
	}

	mux := connection.NewMultiplexer(connection.MultiplexerConfig{
		URL:               cfg.Stream.URL,
		PingTimeout:       cfg.Stream.PingTimeout,
		WriteTimeout:      cfg.Stream.WriteTimeout,
		SocketBufferSize:  cfg.Stream.SocketBufferSize,
		MessageBufferSize: cfg.Stream.MessageBufferSize,
	}, authenticator.Sessions(), logger)

	subscribeFromFlags(mux, map[api.Channel]string{
		api.ChannelQuotes:      *quotes,
		api.ChannelTrades:      *trades,
		api.ChannelOrderdepths: *orderdepths,
		api.ChannelOrders:      *orders,
		api.ChannelDeals:       *deals,
		api.ChannelPositions:   *positions,
	})

	feedWriter := writer.NewFeedWriter(writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}, cfg.Instance.ID, mux.Messages(), pool, logger)

	if err := feedWriter.Start(ctx); err != nil {
		logger.Error("failed to start feed writer", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := authenticator.Authenticate(gctx); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return runStream(gctx, mux, cfg.Stream, logger)
	})

	err = g.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if stopErr := feedWriter.Stop(stopCtx); stopErr != nil {
		logger.Error("failed to stop feed writer", "error", stopErr)
	}

	stats := feedWriter.Stats()
	logger.Info("recorder stopped",
		"inserts", stats.Inserts,
		"flushes", stats.Flushes,
		"errors", stats.Errors,
	)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("recorder exited", "error", err)
		os.Exit(1)
	}
}

// runStream keeps the multiplexer running, reconnecting with exponential
// backoff when the socket drops.
func runStream(ctx context.Context, mux *connection.Multiplexer, cfg config.StreamConfig, logger *slog.Logger) error {
	delay := cfg.ReconnectBaseDelay

	for {
		err := mux.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("stream disconnected, reconnecting",
			"error", err,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.ReconnectMaxDelay {
			delay = cfg.ReconnectMaxDelay
		}
	}
}

func subscribeFromFlags(mux *connection.Multiplexer, flags map[api.Channel]string) {
	for channel, raw := range flags {
		ids := splitIDs(raw)
		if len(ids) > 0 {
			mux.AddSubscription(channel, ids)
		}
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
