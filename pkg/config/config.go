// Package config loads the proxy configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/yfi-proxy/pkg/client"
	"github.com/Sternrassler/yfi-proxy/pkg/logging"
	"github.com/Sternrassler/yfi-proxy/pkg/quote"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Defaults mirror the original server.
const (
	DefaultPort     = 8080
	DefaultCacheTTL = 900 * time.Second
	DefaultEnvFile  = ".env"
)

// Environment variables read when the matching flag is not given.
const (
	EnvPort              = "PORT"
	EnvCacheTTL          = "YFI_CACHE_TTL"
	EnvLogLevel          = "LOG_LEVEL"
	EnvPriceMode         = "YFI_PRICE_MODE"
	EnvUpstreamURL       = "YFI_UPSTREAM_URL"
	EnvUpstreamCookieURL = "YFI_UPSTREAM_COOKIE_URL"
	EnvUpstreamTimeout   = "YFI_UPSTREAM_TIMEOUT"
	EnvUserAgent         = "USER_AGENT"
)

// Config holds application configuration
type Config struct {
	Port              int
	CacheTTL          time.Duration
	LogLevel          string
	LogPretty         bool
	PriceMode         quote.PriceMode
	UpstreamURL       string
	UpstreamCookieURL string
	UpstreamTimeout   time.Duration
	UserAgent         string
	EnvFile           string
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Load parses args (without the program name). Each setting comes from its
// flag when given, else from its environment variable, else the default.
// The .env file never overrides variables already set in the environment.
func Load(args []string, output io.Writer) (*Config, error) {
	flags := pflag.NewFlagSet("yfi-proxy", pflag.ContinueOnError)
	flags.SetOutput(output)

	port := flags.IntP("port", "p", DefaultPort, "port to listen on")
	ttl := flags.Float64P("cache-ttl", "t", DefaultCacheTTL.Seconds(), "lifetime (in seconds) for cached queries")
	logLevel := flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	logPretty := flags.Bool("log-pretty", false, "human-readable console logs instead of JSON")
	priceMode := flags.String("price-mode", string(quote.PriceModeExtracted), "stock price mode (extracted, raw)")
	upstreamURL := flags.String("upstream-url", client.DefaultBaseURL, "Yahoo Finance base URL")
	upstreamCookieURL := flags.String("upstream-cookie-url", client.DefaultCookieURL, "URL visited for the Yahoo session cookie (empty skips it)")
	upstreamTimeout := flags.Duration("upstream-timeout", client.DefaultConfig().Timeout, "timeout per upstream request")
	userAgent := flags.String("user-agent", client.DefaultUserAgent, "User-Agent sent upstream")
	envFile := flags.String("env-file", DefaultEnvFile, "dotenv file loaded at startup")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*envFile); err != nil {
		// The default file is optional; an explicitly named one is not.
		if flags.Changed("env-file") || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
		}
	}

	var errs []error
	fromEnv := func(flag, key string, apply func(string) error) {
		if flags.Changed(flag) {
			return
		}
		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			return
		}
		if err := apply(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	fromEnv("port", EnvPort, func(v string) (err error) {
		*port, err = strconv.Atoi(v)
		return err
	})
	fromEnv("cache-ttl", EnvCacheTTL, func(v string) (err error) {
		*ttl, err = strconv.ParseFloat(v, 64)
		return err
	})
	fromEnv("log-level", EnvLogLevel, func(v string) error {
		*logLevel = v
		return nil
	})
	fromEnv("price-mode", EnvPriceMode, func(v string) error {
		*priceMode = v
		return nil
	})
	fromEnv("upstream-url", EnvUpstreamURL, func(v string) error {
		*upstreamURL = v
		return nil
	})
	fromEnv("upstream-cookie-url", EnvUpstreamCookieURL, func(v string) error {
		*upstreamCookieURL = v
		return nil
	})
	fromEnv("upstream-timeout", EnvUpstreamTimeout, func(v string) (err error) {
		*upstreamTimeout, err = time.ParseDuration(v)
		return err
	})
	fromEnv("user-agent", EnvUserAgent, func(v string) error {
		*userAgent = v
		return nil
	})

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	mode, err := quote.ParsePriceMode(*priceMode)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              *port,
		CacheTTL:          time.Duration(*ttl * float64(time.Second)),
		LogLevel:          strings.ToLower(*logLevel),
		LogPretty:         *logPretty,
		PriceMode:         mode,
		UpstreamURL:       *upstreamURL,
		UpstreamCookieURL: *upstreamCookieURL,
		UpstreamTimeout:   *upstreamTimeout,
		UserAgent:         *userAgent,
		EnvFile:           *envFile,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0 (got %s)", c.CacheTTL)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream url is required")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be > 0 (got %s)", c.UpstreamTimeout)
	}
	return nil
}
