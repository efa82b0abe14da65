// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API    APIConfig    `toml:"api"`
	Export ExportConfig `toml:"export"`
	List   ListConfig   `toml:"list"`
	Log    LogConfig    `toml:"log"`
}

// APIConfig maps metrics API settings.
type APIConfig struct {
	BaseURL           *string   `toml:"base-url"`
	LearnersPath      *string   `toml:"learners-path"`
	CoursesPath       *string   `toml:"courses-path"`
	Token             *string   `toml:"token"`
	Timeout           *Duration `toml:"timeout"`
	RequestsPerSecond *float64  `toml:"requests-per-second"`
	CourseLimit       *int      `toml:"course-limit"`
}

// ExportConfig maps export settings.
type ExportConfig struct {
	PageSize  *int    `toml:"page-size"`
	Ordering  *string `toml:"ordering"`
	OutputDir *string `toml:"output-dir"`
	Title     *string `toml:"title"`
	BOM       *bool   `toml:"bom"`
	MaxPages  *int    `toml:"max-pages"`
}

// ListConfig maps interactive listing settings.
type ListConfig struct {
	PerPage *int `toml:"per-page"`
}

// LogConfig maps logger settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
	File   *string `toml:"file"`
}

// Duration decodes TOML strings such as "30s" or "2m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
