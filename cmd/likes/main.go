package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/woozymasta/nbmap/internal/config"
	"github.com/woozymasta/nbmap/internal/likes"
	"github.com/woozymasta/nbmap/internal/logger"
	"github.com/woozymasta/nbmap/internal/places"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string        `short:"c" long:"config"      env:"CONFIG_FILE"              description:"Town configuration file (built-in town if empty)"`
	ClientID     string        `long:"fsq-client-id"         env:"FOURSQUARE_CLIENT_ID"     description:"Foursquare client id"`
	ClientSecret string        `long:"fsq-client-secret"     env:"FOURSQUARE_CLIENT_SECRET" description:"Foursquare client secret"`
	Limit        []string      `short:"l" long:"limit"       env:"LIMIT_PLACES"             description:"Limit lookups to specific place ids"`
	Concurrency  int           `short:"p" long:"concurrency" env:"CONCURRENCY"              description:"Concurrent lookups" default:"4"`
	Timeout      time.Duration `short:"t" long:"timeout"     env:"FETCH_TIMEOUT"            description:"Per request timeout" default:"15s"`
}

type row struct {
	place places.Place
	count string
	err   error
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

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

	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid places configuration")
	}

	// Filter places if limit is set
	toQuery := catalog.All()
	if len(opts.Limit) > 0 {
		toQuery = make([]places.Place, 0, len(opts.Limit))
		seen := make(map[string]bool)
		for _, id := range opts.Limit {
			if seen[id] {
				continue
			}
			seen[id] = true

			p, err := catalog.Get(id)
			if err != nil {
				log.Error().Err(err).Msg("Place specified in --limit not found in configuration")
				continue
			}
			toQuery = append(toQuery, p)
		}
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	fetcher := likes.NewFoursquare(&http.Client{Timeout: opts.Timeout}, likes.FoursquareOptions{
		BaseURL:      cfg.Foursquare.BaseURL,
		ClientID:     cfg.Foursquare.ClientID,
		ClientSecret: cfg.Foursquare.ClientSecret,
		Version:      cfg.Foursquare.Version,
	})

	log.Info().
		Int("places_total", catalog.Len()).
		Int("places_queued", len(toQuery)).
		Msg("Starting likes lookup")

	rows := make([]row, len(toQuery))
	var mu sync.Mutex
	failed := 0

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(opts.Concurrency)

	for i, p := range toQuery {
		rows[i].place = p

		extID, ok := catalog.ExternalID(p.ID)
		if !ok {
			log.Debug().Str("place", p.ID).Msg("No external id, skipping")
			continue
		}

		g.Go(func() error {
			count, err := fetcher.Fetch(ctx, extID)
			rows[i].count, rows[i].err = count, err
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			// a failed lookup must not cancel the others
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range rows {
		switch {
		case r.err != nil:
			fmt.Printf("%-24s %-12s error: %v\n", r.place.Name, r.place.Category, r.err)
		default:
			fmt.Printf("%-24s %-12s likes: %s\n", r.place.Name, r.place.Category, r.count)
		}
	}

	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("Likes lookup finished with errors")
		os.Exit(1)
	}

	log.Info().Msg("Likes lookup finished successfully")
}
