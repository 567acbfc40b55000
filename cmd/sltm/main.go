package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sltm",
	Short: "Static link transmission model network loading",
	Long: `sltm imports road network from OSM data, routes OD demand over free flow
shortest paths and loads it with static link transmission model (point queues).
Loaded segments and turns are exported as CSV and (optionally) GeoJSON.`,
}

func main() {
	// Missing .env is fine: flags and real environment still work
	_ = godotenv.Load()
	rootCmd.AddCommand(loadCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
