// Package config handles application configuration loading and management.
package config

// Config holds all application settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds game data locations.
type DataConfig struct {
	// GamePath is the root directory scanned for archives.
	GamePath string `yaml:"game_path"`
	// ListfilePath points to a directory of *.txt listfiles or a
	// zip/7z listfile bundle.
	ListfilePath string `yaml:"listfile_path"`
	// OpenWorkers controls parallel archive opening (0 = sequential).
	OpenWorkers int `yaml:"open_workers"`
	// Cache enables the in-memory extraction cache.
	Cache bool `yaml:"cache"`
}

// ExportConfig holds extraction output settings.
type ExportConfig struct {
	// OutputDir is the default destination for extracted files.
	OutputDir string `yaml:"output_dir"`
	// PreservePaths keeps the archive directory structure on extraction.
	PreservePaths bool `yaml:"preserve_paths"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			GamePath:    ".",
			OpenWorkers: 0,
			Cache:       true,
		},
		Export: ExportConfig{
			OutputDir:     "./export",
			PreservePaths: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
