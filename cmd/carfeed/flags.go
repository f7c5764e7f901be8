package main

import (
	"flag"

	"github.com/WessleyAI/carfeed/pkg/config"
)

// overrideFlags are the config values settable from the command line. Only
// flags the user actually passed are applied.
type overrideFlags struct {
	manufacturer string
	model        string
	yearFrom     int
	yearTo       int
	maxPages     int
	workers      int
	outputDir    string
	photos       bool
	schedule     string
	metricsPort  int
}

func registerOverrides(fs *flag.FlagSet) *overrideFlags {
	o := &overrideFlags{}
	fs.StringVar(&o.manufacturer, "manufacturer", "", "manufacturer token, e.g. 현대")
	fs.StringVar(&o.model, "model", "", "model group token")
	fs.IntVar(&o.yearFrom, "year-from", 0, "first model year")
	fs.IntVar(&o.yearTo, "year-to", 0, "last model year")
	fs.IntVar(&o.maxPages, "max-pages", 0, "stop after this many search pages (0 = until empty)")
	fs.IntVar(&o.workers, "workers", 0, "listings processed in parallel")
	fs.StringVar(&o.outputDir, "output-dir", "", "directory for snapshot, journal and table")
	fs.BoolVar(&o.photos, "photos", false, "download listing photos")
	fs.StringVar(&o.schedule, "schedule", "", `repeat on a cron spec, e.g. "@every 6h"`)
	fs.IntVar(&o.metricsPort, "metrics-port", 0, "metrics port")
	return o
}

func (o *overrideFlags) apply(fs *flag.FlagSet, cfg *config.Config) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "manufacturer":
			cfg.Search.Manufacturer = o.manufacturer
		case "model":
			cfg.Search.ModelGroup = o.model
		case "year-from":
			cfg.Search.YearFrom = o.yearFrom
		case "year-to":
			cfg.Search.YearTo = o.yearTo
		case "max-pages":
			cfg.Search.MaxPages = o.maxPages
		case "workers":
			cfg.Pipeline.Workers = o.workers
		case "output-dir":
			cfg.Output.Dir = o.outputDir
		case "photos":
			cfg.Output.DownloadPhotos = o.photos
		case "schedule":
			cfg.Schedule = o.schedule
		case "metrics-port":
			cfg.Metrics.Port = o.metricsPort
		}
	})
	return cfg.Validate()
}
