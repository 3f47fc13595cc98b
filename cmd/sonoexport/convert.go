// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sonoexport/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [source]",
	Short: "Convert every scan file under a directory tree to PNG",
	Long: `Convert walks the source directory (default: the current directory) for
.usr and .raw scan files, extracts the acquisition frame and the title-bar
preview from each, and writes them as PNGs into an output tree that mirrors
the source layout.

Files that are not HDF5 or hold only settings are skipped; files that fail
are reported and counted. A bad file never aborts the batch, and the exit
status stays zero unless --strict is given or the source root itself is
unreadable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts := convertOptions(cmd, args)

	result, err := convert.Run(context.Background(), opts, os.Stdout)
	if err != nil {
		return err
	}

	strict, _ := cmd.Flags().GetBool("strict")
	if strict && result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// convertOptions resolves flags against the convert.* config keys. An
// explicit flag wins over the config file.
func convertOptions(cmd *cobra.Command, args []string) convert.Options {
	source := "."
	if len(args) > 0 {
		source = args[0]
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = viper.GetString("convert.output_dir")
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !cmd.Flags().Changed("quiet") && viper.IsSet("convert.quiet") {
		quiet = viper.GetBool("convert.quiet")
	}

	copyJPEG, _ := cmd.Flags().GetBool("copy-jpeg")
	if !cmd.Flags().Changed("copy-jpeg") && viper.IsSet("convert.copy_jpeg") {
		copyJPEG = viper.GetBool("convert.copy_jpeg")
	}

	minWidth, _ := cmd.Flags().GetInt("min-upscale-width")
	if !cmd.Flags().Changed("min-upscale-width") && viper.IsSet("convert.min_upscale_width") {
		minWidth = viper.GetInt("convert.min_upscale_width")
	}

	deleteSource, _ := cmd.Flags().GetBool("delete-source")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")

	return convert.Options{
		Source:          source,
		Dest:            out,
		MinUpscaleWidth: minWidth,
		Quiet:           quiet,
		CopyJPEG:        copyJPEG,
		DeleteSource:    deleteSource,
		SkipExisting:    skipExisting,
	}
}

func init() {
	convertCmd.Flags().String("out", "", "output directory (default: converted/ under the source root)")
	convertCmd.Flags().BoolP("quiet", "q", false, "suppress per-file status lines")
	convertCmd.Flags().Bool("copy-jpeg", false, "copy JPEG files found in the tree into the output")
	convertCmd.Flags().Bool("delete-source", false, "delete each scan file after successful conversion")
	convertCmd.Flags().Bool("skip-existing", false, "skip scans whose output PNG already exists")
	convertCmd.Flags().Bool("strict", false, "exit nonzero when any file fails")
	convertCmd.Flags().Int("min-upscale-width", 800, "upscale frames narrower than this many pixels (0 = never)")

	rootCmd.AddCommand(convertCmd)
}
