package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/LdDl/sltm"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Loads OD demand of scenario onto network imported from OSM file",
	Long: `Imports road network from *.osm / *.osm.pbf file, seeds shortest routes for
every OD pair of the scenario and runs network loading. Results are written as
<out>_nodes.csv, <out>_segments.csv and <out>_turns.csv.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringP("file", "f", envString("SLTM_OSM_FILE", "my_graph.osm.pbf"), "Filename of *.osm.pbf or *.osm file")
	loadCmd.Flags().StringP("scenario", "s", envString("SLTM_SCENARIO", "scenario.yaml"), "Filename of YAML scenario (options and OD demand)")
	loadCmd.Flags().StringP("out", "o", envString("SLTM_OUT", "loaded.csv"), "Prefix of output CSV files")
	loadCmd.Flags().String("geojson", envString("SLTM_GEOJSON", ""), "Filename of GeoJSON output. Empty means no GeoJSON")
	loadCmd.Flags().IntP("workers", "w", envInt("SLTM_WORKERS", 0), "Number of workers. Overrides scenario value when positive")
	loadCmd.Flags().BoolP("verbose", "v", false, "Print progress and debug logs")
}

func runLoad(cmd *cobra.Command, args []string) error {
	osmFileName, _ := cmd.Flags().GetString("file")
	scenarioFileName, _ := cmd.Flags().GetString("scenario")
	out, _ := cmd.Flags().GetString("out")
	geojsonFileName, _ := cmd.Flags().GetString("geojson")
	workers, _ := cmd.Flags().GetInt("workers")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scenario, err := readScenario(scenarioFileName)
	if err != nil {
		return err
	}
	options, err := scenario.loadingOptions()
	if err != nil {
		return errors.Wrap(err, "Bad scenario options")
	}
	if workers > 0 {
		options = append(options, sltm.WithWorkers(workers))
	}
	options = append(options, sltm.WithLogger(logger))

	if verbose {
		fmt.Printf("Importing network from '%s'... ", osmFileName)
	}
	st := time.Now()
	imported, err := sltm.ImportNetworkFromOSM(ctx, osmFileName, logger)
	if err != nil {
		return errors.Wrap(err, "Can't import network")
	}
	if verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	demands, err := scenario.odDemand(imported)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Seeding routes for %d OD pairs... ", len(demands))
	}
	st = time.Now()
	routes, err := sltm.ShortestPathRoutes(imported.Network, demands, logger)
	if err != nil {
		return errors.Wrap(err, "Can't seed routes")
	}
	if verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	consumer, err := sltm.NewPathFlowConsumer(imported.Network, routes, logger)
	if err != nil {
		return err
	}
	loading, err := sltm.NewNetworkLoading(imported.Network, consumer, options...)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Loading network... ")
	}
	st = time.Now()
	result, err := loading.Run(ctx)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}
	printSummary(result, consumer.Skipped())

	err = loading.ExportToCSV(out)
	if err != nil {
		return errors.Wrap(err, "Can't export CSV")
	}
	if geojsonFileName != "" {
		err = loading.ExportToGeoJSON(geojsonFileName)
		if err != nil {
			return errors.Wrap(err, "Can't export GeoJSON")
		}
	}
	return nil
}

func printSummary(result sltm.LoadingResult, skipped int) {
	status := color.New(color.FgGreen, color.Bold).Sprint("converged")
	if !result.Converged {
		status = color.New(color.FgYellow, color.Bold).Sprint("not converged")
	}
	fmt.Printf("Scheme: %s (%s tracking)\n", result.Scheme, result.Tracking)
	fmt.Printf("Status: %s after %d passes, max alpha change %g\n", status, result.Iterations, result.MaxAlphaChange)
	fmt.Printf("Potentially blocking nodes: %d\n", len(result.PotentiallyBlockingNodes))
	if result.NodeModelFallbacks > 0 {
		color.Yellow("Node model fallbacks: %d\n", result.NodeModelFallbacks)
	}
	if skipped > 0 {
		color.Yellow("Skipped routes: %d\n", skipped)
	}
}
