// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/sonoexport/internal/scanfile"
)

// resolveDest returns the output directory for a run. A relative dest is
// taken under the source root, so the default layout keeps converted images
// next to the scans they came from.
func resolveDest(source, dest string) string {
	if dest == "" {
		dest = "converted"
	}
	if filepath.IsAbs(dest) {
		return filepath.Clean(dest)
	}
	return filepath.Join(source, dest)
}

// collectFiles walks the source tree and returns the scan files and, when
// copyJPEG is set, the JPEG files found. The dest subtree is excluded so
// reruns never recurse into earlier output. Unreadable entries produce a
// warning on w; only a failure to read the root aborts the walk.
func collectFiles(source, dest string, copyJPEG bool, w io.Writer) (scans, jpegs []string, err error) {
	cleanDest := filepath.Clean(dest)

	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == source {
				return walkErr
			}
			fmt.Fprintf(w, "warning: %s: %v\n", path, walkErr)
			return nil
		}
		if d.IsDir() {
			if filepath.Clean(path) == cleanDest {
				return fs.SkipDir
			}
			return nil
		}
		switch {
		case scanfile.IsScanPath(path):
			scans = append(scans, path)
		case copyJPEG && isJPEGFile(path):
			jpegs = append(jpegs, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return scans, jpegs, nil
}

func isJPEGFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// relName returns path relative to root for status output.
func relName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
