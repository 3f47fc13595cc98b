// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sonoexport/internal/scanfile"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the internal structure of a scan container",
	Long: `Inspect opens a single scan file and lists every group and dataset in
it, with dimensions, element types, and storage layout. Use --format to
get the listing as YAML or JSON instead of a table.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := scanfile.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	entries := f.Entries()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text", "":
		printEntries(f, entries)
	case "yaml":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		os.Stdout.Write(data)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unsupported format %q: use text, yaml, or json", format)
	}
	return nil
}

func printEntries(f *scanfile.File, entries []scanfile.Entry) {
	fmt.Fprintf(os.Stdout, "%-56s  %-14s  %-8s  %s\n", "Path", "Dims", "Type", "Layout")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))

	for _, e := range entries {
		if e.Group {
			fmt.Fprintf(os.Stdout, "%s/\n", e.Path)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-56s  %-14s  %-8s  %s\n", e.Path, dimsString(e.Dims), e.Type, e.Layout)
	}

	if f.SettingsOnly() {
		fmt.Fprintln(os.Stdout, "\nSettings-only container, no image data.")
		return
	}
	if w, h, dtype, ok := f.PrimaryFrameInfo(); ok {
		fmt.Fprintf(os.Stdout, "\nPrimary frame: %dx%d %s\n", w, h, dtype)
	}
}

func dimsString(dims []uint64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return strings.Join(parts, "x")
}

func init() {
	inspectCmd.Flags().String("format", "text", "output format: text, yaml, or json")

	rootCmd.AddCommand(inspectCmd)
}
