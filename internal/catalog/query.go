// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/sonoexport/pkg/types"
)

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// Text is an FTS5 search string matched against file and dataset paths.
	Text string

	// Kind filters by scan kind.
	Kind types.ScanKind

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Text == "" && q.Kind == ""
}

// Query searches the catalog with optional full-text search and a kind
// filter. Results are ranked by relevance for full-text queries or sorted
// by path otherwise.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]types.ScanInfo, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Text != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT s.path, s.kind, s.width, s.height, s.dtype, s.datasets,
				s.size_bytes, s.mod_time
			FROM scans_fts
			JOIN scans s ON s.rowid = scans_fts.rowid
			WHERE scans_fts MATCH ?`)
		args = append(args, opts.Text)
	} else {
		qb.WriteString(
			`SELECT s.path, s.kind, s.width, s.height, s.dtype, s.datasets,
				s.size_bytes, s.mod_time
			FROM scans s
			WHERE 1=1`)
	}

	if opts.Kind != "" {
		qb.WriteString(` AND s.kind = ?`)
		args = append(args, string(opts.Kind))
	}

	if useFTS {
		qb.WriteString(` ORDER BY scans_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY s.path`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []types.ScanInfo
	for rows.Next() {
		var (
			info         types.ScanInfo
			kind         string
			datasetsJSON string
			modTime      string
		)
		if err := rows.Scan(&info.Path, &kind, &info.Width, &info.Height,
			&info.DType, &datasetsJSON, &info.SizeBytes, &modTime); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		info.Kind = types.ScanKind(kind)
		json.Unmarshal([]byte(datasetsJSON), &info.Datasets)
		if t, err := time.Parse(time.RFC3339Nano, modTime); err == nil {
			info.ModTime = t
		}

		results = append(results, info)
	}

	return results, rows.Err()
}

// Stats summarizes the catalog contents.
type Stats struct {
	Total     int                    `json:"total" yaml:"total"`
	SizeBytes int64                  `json:"size_bytes" yaml:"size_bytes"`
	ByKind    map[types.ScanKind]int `json:"by_kind" yaml:"by_kind"`
}

// Stats aggregates per-kind counts and the total bytes indexed.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByKind: make(map[types.ScanKind]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, count(*), coalesce(sum(size_bytes), 0) FROM scans GROUP BY kind`)
	if err != nil {
		return stats, fmt.Errorf("querying catalog stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  string
			count int
			size  int64
		)
		if err := rows.Scan(&kind, &count, &size); err != nil {
			return stats, fmt.Errorf("scanning row: %w", err)
		}
		stats.ByKind[types.ScanKind(kind)] = count
		stats.Total += count
		stats.SizeBytes += size
	}

	return stats, rows.Err()
}
