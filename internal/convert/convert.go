// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert walks a directory tree of ultrasound scan containers and
// writes PNG images into a mirrored output tree.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/sonoexport/internal/raster"
	"github.com/pdiddy/sonoexport/internal/scanfile"
	"github.com/pdiddy/sonoexport/pkg/types"
)

// Options controls a batch conversion run.
type Options struct {
	// Source is the root directory to scan for .usr and .raw files.
	Source string

	// Dest is the output directory. A relative path is resolved against
	// Source; empty means "converted" under Source.
	Dest string

	// MinUpscaleWidth upscales primary frames narrower than this many
	// pixels before encoding. Zero disables upscaling.
	MinUpscaleWidth int

	// Quiet suppresses per-file status lines.
	Quiet bool

	// CopyJPEG copies ordinary JPEG files into the output tree.
	CopyJPEG bool

	// DeleteSource removes each scan file after successful conversion.
	DeleteSource bool

	// SkipExisting skips scans whose main output PNG already exists.
	SkipExisting bool
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
	Copied    int
}

// Total returns the total number of scan files processed. JPEG copies are
// not counted.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any scan files failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Run converts every scan file under opts.Source, mirroring the source
// layout below the output directory. Per-file problems are reported on w
// and counted; Run returns an error only when the source root cannot be
// read or ctx is cancelled.
func Run(ctx context.Context, opts Options, w io.Writer) (BatchResult, error) {
	var result BatchResult

	source := opts.Source
	if source == "" {
		source = "."
	}
	info, err := os.Stat(source)
	if err != nil {
		return result, fmt.Errorf("reading source root: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("source root %s is not a directory", source)
	}

	dest := resolveDest(source, opts.Dest)

	detail := w
	if opts.Quiet {
		detail = io.Discard
	}

	scans, jpegs, err := collectFiles(source, dest, opts.CopyJPEG, detail)
	if err != nil {
		return result, fmt.Errorf("walking source root: %w", err)
	}

	for _, p := range scans {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		rel := relName(source, p)
		destDir := filepath.Join(dest, filepath.Dir(rel))
		status := convertScan(p, rel, destDir, opts, detail)
		switch status {
		case types.ConvertDone:
			result.Converted++
		case types.ConvertSkipped:
			result.Skipped++
		case types.ConvertFailed:
			result.Failed++
		}
	}

	for _, p := range jpegs {
		rel := relName(source, p)
		if err := copyFile(p, filepath.Join(dest, rel)); err != nil {
			fmt.Fprintf(detail, "  warning: %s: %v\n", rel, err)
			continue
		}
		fmt.Fprintf(detail, "copied:  %s\n", rel)
		result.Copied++
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	if result.Copied > 0 {
		fmt.Fprintf(w, "JPEG copies: %d\n", result.Copied)
	}
	return result, nil
}

// convertScan converts a single scan file, writing its outputs under
// destDir and a status line to w. It returns the status of the conversion.
// A scan converts when at least one image was written; extraction problems
// short of that are reported as warnings.
func convertScan(srcPath, rel, destDir string, opts Options, w io.Writer) types.ConvertStatus {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	mainPath := filepath.Join(destDir, base+"_ultrasound.png")

	if opts.SkipExisting {
		if _, err := os.Stat(mainPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", rel)
			return types.ConvertSkipped
		}
	}

	if !scanfile.SniffHDF5(srcPath) {
		fmt.Fprintf(w, "skipped: %s (not an HDF5 container)\n", rel)
		return types.ConvertSkipped
	}

	f, err := scanfile.Open(srcPath)
	if err != nil {
		if errors.Is(err, scanfile.ErrNotHDF5) {
			fmt.Fprintf(w, "skipped: %s (not an HDF5 container)\n", rel)
			return types.ConvertSkipped
		}
		fmt.Fprintf(w, "failed:  %s (%v)\n", rel, err)
		return types.ConvertFailed
	}
	defer f.Close()

	if f.SettingsOnly() {
		fmt.Fprintf(w, "skipped: %s (%v)\n", rel, scanfile.ErrSettingsOnly)
		return types.ConvertSkipped
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", rel, err)
		return types.ConvertFailed
	}

	written := 0

	frame, err := f.PrimaryFrame()
	switch {
	case err == nil:
		img := raster.Gray(raster.Normalize(frame.Pix), frame.Width, frame.Height)
		if err := raster.WritePNG(mainPath, raster.Upscale(img, opts.MinUpscaleWidth)); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", rel, err)
			return types.ConvertFailed
		}
		written++
	case errors.Is(err, scanfile.ErrNoImageData):
		// no frame at the known paths; the sweep below may still find one
	default:
		fmt.Fprintf(w, "  warning: %s: %v\n", rel, err)
	}

	preview, err := f.Preview()
	switch {
	case err != nil:
		fmt.Fprintf(w, "  warning: %s: %v\n", rel, err)
	case preview != nil:
		img := raster.PreviewImage(preview.Data, preview.Width, preview.Height, preview.BPP)
		if err := raster.WritePNG(filepath.Join(destDir, base+"_preview.png"), img); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", rel, err)
			return types.ConvertFailed
		}
		written++
	}

	if written == 0 {
		written = sweepImages(f, base, rel, destDir, w)
	}

	if written == 0 {
		fmt.Fprintf(w, "failed:  %s (%v)\n", rel, scanfile.ErrNoImageData)
		return types.ConvertFailed
	}

	fmt.Fprintf(w, "converted: %s\n", rel)

	if opts.DeleteSource {
		if err := os.Remove(srcPath); err != nil {
			fmt.Fprintf(w, "  warning: %s: %v\n", rel, err)
		}
	}
	return types.ConvertDone
}

// sweepImages writes PNGs for image-like datasets found by a full container
// sweep. It is the fallback when neither the primary frame nor the preview
// produced output.
func sweepImages(f *scanfile.File, base, rel, destDir string, w io.Writer) int {
	cands := f.SweepCandidates()
	if len(cands) > scanfile.MaxSweepImages {
		cands = cands[:scanfile.MaxSweepImages]
	}

	written := 0
	for _, c := range cands {
		sw, err := f.ReadSweepImage(c)
		if err != nil {
			fmt.Fprintf(w, "  warning: %s: %s: %v\n", rel, c.Path, err)
			continue
		}
		img, err := raster.PackedImage(sw.Data, sw.Width, sw.Height, sw.Channels)
		if err != nil {
			fmt.Fprintf(w, "  warning: %s: %s: %v\n", rel, c.Path, err)
			continue
		}
		name := base + "_" + strings.ReplaceAll(c.Path, "/", "_") + ".png"
		if err := raster.WritePNG(filepath.Join(destDir, name), img); err != nil {
			fmt.Fprintf(w, "  warning: %s: %s: %v\n", rel, c.Path, err)
			continue
		}
		written++
	}
	return written
}
