package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/woozymasta/nbmap/internal/config"
	"github.com/woozymasta/nbmap/internal/geo"
	"github.com/woozymasta/nbmap/internal/places"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Town configuration file (built-in town if empty)"`
	Output     string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format     string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Filter     string `short:"F" long:"filter" description:"Category filter (all, bar, cinema, restaurant)" default:"all"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	filter, err := places.ParseFilter(opts.Filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		os.Exit(1)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in places: %v\n", err)
		os.Exit(1)
	}

	fc := geo.FromPlaces(catalog.Visible(filter))

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(fc)
	} else {
		outputData, err = json.MarshalIndent(fc, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully exported %d places to %s (format: %s)\n", len(fc.Features), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
