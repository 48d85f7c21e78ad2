// Package main provides the harvester command that reads remote metadata
// sources, normalizes them and synchronizes the target catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mjanez/ckan-ogc/internal/ckan"
	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/harvester"
	"github.com/mjanez/ckan-ogc/internal/logger"
	"github.com/mjanez/ckan-ogc/internal/mapping"
	"github.com/mjanez/ckan-ogc/internal/report"
)

// maxParallelSources caps concurrent source harvests.
const maxParallelSources = 4

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the harvester configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Logging.Level)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("🚀 Starting harvest run",
		"catalog", cfg.CKAN.SiteURL, "sources", len(cfg.ActiveSources()))

	startTime := time.Now()

	// Phase 1: shared collaborators.
	httpClient := &http.Client{Timeout: 60 * time.Second}
	vocab := mapping.NewVocabulary(cfg.Harvest.MappingsDir)

	localized, err := mapping.LoadLocalizedStrings(
		filepath.Join(cfg.Harvest.MappingsDir, "default_localized_strings.yaml"))
	if err != nil {
		log.Warn("⚠️  Localized strings unavailable, using format defaults", "error", err)
	}

	var directory *mapping.Directory
	if cfg.CKAN.DirectoryURL != "" {
		directory, err = mapping.FetchDirectory(ctx, httpClient, cfg.CKAN.DirectoryURL)
		if err != nil {
			log.Warn("⚠️  Organization directory unavailable, party URIs stay as configured",
				"error", err)
		} else {
			log.Info("✅ Organization directory loaded")
		}
	}

	client := ckan.NewClient(&cfg.CKAN, log)
	engine := ckan.NewEngine(client, log)

	deps := harvester.Deps{
		CKAN:       &cfg.CKAN,
		Log:        log,
		Vocabulary: vocab,
		Directory:  directory,
		Strings:    localized,
		Client:     httpClient,
	}

	// Phase 2: harvest and synchronize every active source. A failing source
	// is reported in the summary, never aborts the run.
	sources := cfg.ActiveSources()
	results := make([]*ckan.Result, len(sources))

	if cfg.Harvest.Parallelization {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(maxParallelSources)

		for i, src := range sources {
			i, src := i, src
			group.Go(func() error {
				results[i] = syncSource(groupCtx, src, deps, engine, log)
				return nil
			})
		}
		_ = group.Wait()
	} else {
		for i, src := range sources {
			results[i] = syncSource(ctx, src, deps, engine, log)
		}
	}

	// Phase 3: summary.
	log.Info("✨ Harvest run complete")
	fmt.Println()
	fmt.Print(report.Render(results, time.Since(startTime)))
}

// syncSource runs one source end to end and always returns a result, folding
// harvest or sync failures into its error list.
func syncSource(ctx context.Context, src *config.Source, deps harvester.Deps, engine *ckan.Engine, log *logger.Logger) *ckan.Result {
	failed := func(err error) *ckan.Result {
		log.Error("❌ Source failed", "source", src.Name, "error", err)
		return &ckan.Result{
			Source: src.Name,
			Errors: []ckan.DatasetError{{Title: src.Name, Error: err.Error()}},
		}
	}

	h, err := harvester.New(src, deps)
	if err != nil {
		return failed(err)
	}

	datasets, err := h.Harvest(ctx)
	if err != nil {
		return failed(err)
	}

	result, err := engine.CreateDatasets(ctx, src, datasets)
	if err != nil {
		return failed(err)
	}

	return result
}
