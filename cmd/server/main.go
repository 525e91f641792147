package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/nbmap/internal/config"
	"github.com/woozymasta/nbmap/internal/likes"
	"github.com/woozymasta/nbmap/internal/logger"
	"github.com/woozymasta/nbmap/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string        `short:"c" long:"config"        env:"CONFIG_FILE"              description:"Path to town configuration file (built-in town if empty)"`
	Addr         string        `short:"a" long:"addr"          env:"LISTEN_ADDRESS"           description:"Address to listen on"                 default:"0.0.0.0"`
	MetricsAddr  string        `short:"m" long:"metrics-addr"  env:"METRICS_ADDRESS"          description:"Separate listen address for /metrics (served on the main port if empty)"`
	ClientID     string        `long:"fsq-client-id"           env:"FOURSQUARE_CLIENT_ID"     description:"Foursquare client id"`
	ClientSecret string        `long:"fsq-client-secret"       env:"FOURSQUARE_CLIENT_SECRET" description:"Foursquare client secret"`
	Port         int           `short:"p" long:"port"          env:"LISTEN_PORT"              description:"Port to listen on"                    default:"8080"`
	SessionTTL   time.Duration `long:"session-ttl"             env:"SESSION_TTL"              description:"Idle widget session lifetime"         default:"30m"`
	RateLimit    float64       `long:"rate-limit"              env:"RATE_LIMIT"               description:"API requests per second per client"   default:"5"`
	RateBurst    int           `long:"rate-burst"              env:"RATE_BURST"               description:"API request burst per client"         default:"30"`
	NoMinify     bool          `long:"no-minify"               env:"NO_MINIFY"                description:"Serve the page without minification"`
}

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.ClientID != "" {
		cfg.Foursquare.ClientID = opts.ClientID
	}
	if opts.ClientSecret != "" {
		cfg.Foursquare.ClientSecret = opts.ClientSecret
	}
	if cfg.Foursquare.ClientID == "" || cfg.Foursquare.ClientSecret == "" {
		log.Warn().Msg("Foursquare credentials not set, likes will stay blank")
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid places configuration")
	}

	fetcher := likes.NewFoursquare(&http.Client{Timeout: cfg.Foursquare.Timeout}, likes.FoursquareOptions{
		BaseURL:      cfg.Foursquare.BaseURL,
		ClientID:     cfg.Foursquare.ClientID,
		ClientSecret: cfg.Foursquare.ClientSecret,
		Version:      cfg.Foursquare.Version,
	})

	metrics := server.NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	sessions := server.NewSessions(catalog, fetcher, metrics, opts.SessionTTL)
	defer sessions.Close()
	limiter := server.NewRateLimiter(opts.RateLimit, opts.RateBurst, metrics)

	srvCtx, err := server.NewServerContext(cfg, catalog, sessions, metrics, limiter, !opts.NoMinify)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render page assets")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	servers := []*http.Server{{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(opts.MetricsAddr == ""),
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if opts.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	log.Info().
		Str("addr", listenAddr).
		Str("metrics_addr", opts.MetricsAddr).
		Str("town", cfg.Town.Name).
		Int("places_loaded", catalog.Len()).
		Msg("Web server started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server failed")
		sessions.Close()
		os.Exit(1)
	}

	log.Info().Msg("Web server stopped")
}
