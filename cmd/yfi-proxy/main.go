package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/yfi-proxy/pkg/auth"
	"github.com/Sternrassler/yfi-proxy/pkg/batch"
	"github.com/Sternrassler/yfi-proxy/pkg/cache"
	"github.com/Sternrassler/yfi-proxy/pkg/client"
	"github.com/Sternrassler/yfi-proxy/pkg/config"
	"github.com/Sternrassler/yfi-proxy/pkg/logging"
	"github.com/Sternrassler/yfi-proxy/pkg/quote"
	"github.com/Sternrassler/yfi-proxy/pkg/server"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "yfi-proxy: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := config.Load(args, stderr)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: stderr,
	})

	// Read after config.Load so the .env file can provide the keys.
	keys := auth.LoadKeys(auth.DefaultEnvVar)
	if len(keys) == 0 {
		logger.Warn().
			Str("env", auth.DefaultEnvVar).
			Msg("No API keys configured, every quote request will be rejected")
	}

	yahoo, err := client.New(client.Config{
		BaseURL:   cfg.UpstreamURL,
		CookieURL: cfg.UpstreamCookieURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.UpstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("create yahoo client: %w", err)
	}

	svc := quote.NewService(yahoo, quote.Config{
		PriceMode: cfg.PriceMode,
		Batch:     batch.DefaultConfig(),
	})

	srv := server.New(server.Config{
		Log:      logger,
		Service:  svc,
		Cache:    cache.NewManager(),
		CacheTTL: cfg.CacheTTL,
		Keys:     keys,
	})

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	logger.Info().
		Int("port", cfg.Port).
		Dur("cache_ttl", cfg.CacheTTL).
		Str("price_mode", string(cfg.PriceMode)).
		Str("upstream", cfg.UpstreamURL).
		Int("api_keys", len(keys)).
		Msg("Configuration loaded")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}
