package types

// ConvertConfig holds settings for the convert command.
type ConvertConfig struct {
	// OutputDir is the destination directory for converted images. A relative
	// path is resolved against the source root (default "converted").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MinUpscaleWidth upscales primary frames narrower than this many pixels
	// before encoding. Zero disables upscaling.
	MinUpscaleWidth int `json:"min_upscale_width" yaml:"min_upscale_width"`

	// CopyJPEG controls whether ordinary JPEG files found next to scans are
	// copied into the output tree.
	CopyJPEG bool `json:"copy_jpeg" yaml:"copy_jpeg"`

	// Quiet suppresses per-file status lines; the batch summary still prints.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// CatalogConfig holds settings for the catalog commands.
type CatalogConfig struct {
	// DBPath is the SQLite database file. A relative path is resolved against
	// the scanned root (default "catalog.db").
	DBPath string `json:"db_path" yaml:"db_path"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Config groups all command configurations.
type Config struct {
	Convert ConvertConfig `json:"convert" yaml:"convert"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
}
