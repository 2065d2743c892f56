// streamer authenticates against the broker, connects the realtime stream,
// and prints forwarded messages to the console.
// Usage: go run ./cmd/streamer --config configs/streamer.example.yaml --quotes 5479,26268
//
// Required environment variables:
//
//	BROKER_USERNAME    - Broker login username
//	BROKER_PASSWORD    - Broker login password
//	BROKER_TOTP_SECRET - Base32 TOTP secret for the second factor
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
	"github.com/rickgao/broker-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamer.example.yaml", "path to config file")
	quotes := flag.String("quotes", "", "comma-separated orderbook ids for quote updates")
	trades := flag.String("trades", "", "comma-separated orderbook ids for trade updates")
	orderdepths := flag.String("orderdepths", "", "comma-separated orderbook ids for depth updates")
	orders := flag.String("orders", "", "comma-separated account ids for order updates")
	deals := flag.String("deals", "", "comma-separated account ids for deal updates")
	positions := flag.String("positions", "", "comma-separated account ids for position updates")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
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

	if mux.Subscriptions().Len() == 0 {
		logger.Warn("no subscriptions requested, expecting heartbeats only")
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

	g.Go(func() error {
		return printMessages(gctx, mux.Messages(), *verbose)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("streamer exited", "error", err)
		os.Exit(1)
	}

	logger.Info("streamer stopped")
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

func printMessages(ctx context.Context, messages <-chan connection.Message, verbose bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-messages:
			if verbose {
				fmt.Printf("%s %s %s\n", msg.ReceivedAt.Format(time.RFC3339Nano), msg.Channel, msg.Data)
			} else {
				fmt.Printf("%s %s\n", msg.ReceivedAt.Format(time.RFC3339), msg.Channel)
			}
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
