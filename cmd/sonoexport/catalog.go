// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sonoexport/internal/catalog"
	"github.com/pdiddy/sonoexport/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain a searchable index of a scan archive",
	Long: `Catalog maintains a SQLite index of every scan file under an archive
root: its kind (scan, settings, not-hdf5, corrupt), frame dimensions,
element type, and the dataset paths inside it. Use subcommands to build
the index, search it, or summarize it.

The catalog is bookkeeping only; convert never reads it.`,
}

// --- build subcommand ---

var catalogBuildCmd = &cobra.Command{
	Use:   "build [source]",
	Short: "Index every scan file under the archive root",
	Long: `Build walks the archive root (default: the current directory) and
indexes every .usr and .raw file. Files whose modification time has not
changed since the last build are skipped, so rebuilding a large archive
is cheap.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogBuild,
}

func runCatalogBuild(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")
	if len(args) > 0 {
		root = args[0]
	}

	store, err := catalog.NewStore(catalogConfig(cmd), root)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Build(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- query subcommand ---

var catalogQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the catalog by path and dataset names",
	Long: `Query searches the catalog with FTS5 full-text search over file paths
and dataset paths, optionally filtered by kind. Without search text the
kind filter alone selects entries.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogQuery,
}

func runCatalogQuery(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")

	store, err := catalog.NewStore(catalogConfig(cmd), root)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search text or --kind")
	}

	results, err := store.Query(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatQueryOutput(results, jsonOutput)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) catalog.QueryOptions {
	text, _ := cmd.Flags().GetString("text")
	if text == "" && len(args) > 0 {
		text = args[0]
	}

	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	return catalog.QueryOptions{
		Text:       text,
		Kind:       types.ScanKind(kind),
		MaxResults: limit,
	}
}

func formatQueryOutput(results []types.ScanInfo, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-50s  %-10s  %-10s  %-8s  %s\n",
		"Path", "Kind", "Dims", "Type", "Size")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))

	for _, r := range results {
		dims := ""
		if r.Width > 0 {
			dims = fmt.Sprintf("%dx%d", r.Width, r.Height)
		}
		path := r.Path
		if len(path) > 50 {
			path = "..." + path[len(path)-47:]
		}
		fmt.Fprintf(os.Stdout, "%-50s  %-10s  %-10s  %-8s  %d\n",
			path, r.Kind, dims, r.DType, r.SizeBytes)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- stats subcommand ---

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the catalog by kind",
	RunE:  runCatalogStats,
}

func runCatalogStats(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")

	store, err := catalog.NewStore(catalogConfig(cmd), root)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(os.Stdout, "%d files indexed, %d bytes\n", stats.Total, stats.SizeBytes)
	for _, kind := range []types.ScanKind{
		types.KindScan, types.KindSettings, types.KindNotHDF5, types.KindCorrupt,
	} {
		if n := stats.ByKind[kind]; n > 0 {
			fmt.Fprintf(os.Stdout, "  %-10s %d\n", kind, n)
		}
	}
	return nil
}

// --- shared helpers ---

func catalogConfig(cmd *cobra.Command) types.CatalogConfig {
	dbPath, _ := cmd.Flags().GetString("db-path")
	if dbPath == "" {
		dbPath = viper.GetString("catalog.db_path")
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	if !cmd.Flags().Changed("max-results") && viper.IsSet("catalog.max_results") {
		maxResults = viper.GetInt("catalog.max_results")
	}

	return types.CatalogConfig{DBPath: dbPath, MaxResults: maxResults}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	catalogCmd.PersistentFlags().String("db-path", "", "catalog database file (default: catalog.db under the root)")
	catalogCmd.PersistentFlags().Int("max-results", 20, "maximum number of query results")
	catalogCmd.PersistentFlags().String("root", ".", "archive root the catalog belongs to")

	// Query flags.
	catalogQueryCmd.Flags().String("text", "", "full-text search over file and dataset paths")
	catalogQueryCmd.Flags().String("kind", "", "filter by kind: scan, settings, not-hdf5, corrupt")
	catalogQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	catalogQueryCmd.Flags().Bool("json", false, "output results as JSON")

	// Stats flags.
	catalogStatsCmd.Flags().Bool("json", false, "output stats as JSON")

	// Wire subcommands.
	catalogCmd.AddCommand(catalogBuildCmd)
	catalogCmd.AddCommand(catalogQueryCmd)
	catalogCmd.AddCommand(catalogStatsCmd)

	rootCmd.AddCommand(catalogCmd)
}
