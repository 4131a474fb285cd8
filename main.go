package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/cepro/minigridsim/analysis"
	"github.com/cepro/minigridsim/appraisal"
	"github.com/cepro/minigridsim/config"
	"github.com/cepro/minigridsim/optimisation"
	"github.com/cepro/minigridsim/profiles"
	"github.com/cepro/minigridsim/repository"
	"github.com/cepro/minigridsim/simulation"
)

func main() {
	configPath := pflag.String("config", "minigrid.yaml", "path to the scenario/optimisation input file")
	inputsDir := pflag.String("inputs", "inputs", "directory holding the resource profile CSVs")
	solarURL := pflag.String("solar-url", "", "solar profile API base URL; when empty the solar CSV in the inputs directory is used")
	dbPath := pflag.String("output-db", "results.sqlite", "sqlite file to store results in")
	plotsDir := pflag.String("plots", "", "directory to render result plots into; empty disables plotting")
	parallelism := pflag.Int("parallelism", 1, "concurrent candidate simulations within a sweep line")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	slog.Info("Starting minigrid sizing run...", "config", *configPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Read(*configPath)
	if err != nil {
		slog.Error("Failed to read config", "error", err)
		os.Exit(1)
	}
	impacts, err := config.DecodeImpacts(cfg.Impacts)
	if err != nil {
		slog.Error("Failed to decode impact tables", "error", err)
		os.Exit(1)
	}

	years := cfg.Optimisation.Iterations * cfg.Optimisation.IterationLength

	// The solar profile fetch can be slow, so it runs in the background while
	// the local profiles load; both are joined before any simulation starts.
	var solar profiles.Profile
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var fetcher profiles.Fetcher
		if *solarURL != "" {
			fetcher = profiles.NewHTTPFetcher(nil, *solarURL)
		} else {
			fetcher = profiles.FileFetcher{Path: filepath.Join(*inputsDir, "solar.csv"), Column: "output"}
		}
		var err error
		solar, err = fetcher.Fetch(groupCtx, years)
		return err
	})

	set, err := loadLocalProfiles(*inputsDir, cfg.Scenario)
	if err != nil {
		slog.Error("Failed to load resource profiles", "error", err)
		os.Exit(1)
	}
	if err := group.Wait(); err != nil {
		slog.Error("Failed to fetch solar profile", "error", err)
		os.Exit(1)
	}
	set.Solar = solar

	sim, err := simulation.New(cfg.Scenario, cfg.Devices, set, cfg.Finance.DieselCapacityIncrement)
	if err != nil {
		slog.Error("Failed to create simulator", "error", err)
		os.Exit(1)
	}
	appraiser, err := appraisal.NewAppraiser(cfg.Finance, impacts)
	if err != nil {
		slog.Error("Failed to create appraiser", "error", err)
		os.Exit(1)
	}
	params, err := optimisation.ParamsFromConfig(cfg.Optimisation)
	if err != nil {
		slog.Error("Failed to resolve optimisation parameters", "error", err)
		os.Exit(1)
	}

	engine := optimisation.New(sim, appraiser, params)
	engine.SetParallelism(*parallelism)

	result, err := engine.Run(ctx)
	if err != nil {
		slog.Error("Optimisation run failed", "error", err)
		os.Exit(1)
	}
	slog.Info(
		"Optimisation run complete",
		"run_id", result.ID,
		"iterations", len(result.Iterations),
		"simulations", result.Simulations,
		"duration", result.Duration,
	)

	repo, err := repository.New(*dbPath)
	if err != nil {
		slog.Error("Failed to open results database", "error", err)
		os.Exit(1)
	}
	if err := repo.AddResult(result); err != nil {
		slog.Error("Failed to store results", "error", err)
		os.Exit(1)
	}

	if *plotsDir != "" {
		if err := os.MkdirAll(*plotsDir, 0o755); err != nil {
			slog.Error("Failed to create plots directory", "error", err)
			os.Exit(1)
		}
		chain, err := repo.AppraisalChain(result.ID, params.Objectives[0])
		if err != nil {
			slog.Error("Failed to load appraisal chain", "error", err)
			os.Exit(1)
		}
		for _, criterion := range params.Objectives {
			if err := analysis.PlotCriterionByIteration(chain, criterion, *plotsDir); err != nil {
				slog.Error("Failed to render plots", "error", err)
				os.Exit(1)
			}
		}
	}
}

// loadLocalProfiles reads the CSV-backed profiles from the inputs directory.
// Sector load files are only required for the sectors the scenario serves;
// the water demand file only when a water mode is active.
func loadLocalProfiles(dir string, scenario config.Scenario) (*profiles.Set, error) {
	set := &profiles.Set{Load: map[profiles.Sector]profiles.Profile{}}

	grid, err := profiles.ReadCSVFile(filepath.Join(dir, "grid_availability.csv"), "availability")
	if err != nil {
		return nil, err
	}
	set.GridAvailability = grid

	kerosene, err := profiles.ReadCSVFile(filepath.Join(dir, "kerosene.csv"), "usage")
	if err != nil {
		return nil, err
	}
	set.Kerosene = kerosene

	for _, sector := range scenario.Sectors() {
		p, err := profiles.ReadCSVFile(filepath.Join(dir, string(sector)+"_load.csv"), "load")
		if err != nil {
			return nil, err
		}
		set.Load[sector] = p
	}

	if scenario.WaterMode != config.WaterModeDisabled {
		water, err := profiles.ReadCSVFile(filepath.Join(dir, "water_demand.csv"), "demand")
		if err != nil {
			return nil, err
		}
		set.Water = water
	}

	return set, nil
}
