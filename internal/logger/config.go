package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Environment variables consulted by ApplyEnvironment.
const (
	EnvLevel = "MINIMP3_LOG_LEVEL"
	EnvMode  = "MINIMP3_LOG_MODE"
	EnvDir   = "MINIMP3_LOG_DIR"
	EnvColor = "MINIMP3_LOG_COLOR"
)

// FileConfig is the JSON form of the logger configuration. Absent fields
// leave the corresponding Config value untouched.
type FileConfig struct {
	Format            string          `json:"format,omitempty"`
	Directory         string          `json:"directory,omitempty"`
	Filename          string          `json:"filename,omitempty"`
	Enabled           *bool           `json:"enabled,omitempty"`
	Name              string          `json:"name,omitempty"`
	Mode              string          `json:"mode,omitempty"`
	Level             string          `json:"level,omitempty"`
	Color             *bool           `json:"color,omitempty"`
	FileCompatibility *bool           `json:"file_compatibility,omitempty"`
	OpenMode          string          `json:"open_mode,omitempty"` // "append" or "truncate"
	MakeParents       *bool           `json:"make_parents,omitempty"`
	Rotation          *RotationConfig `json:"rotation,omitempty"`
}

// RotationConfig configures size-based rotation of the log file.
type RotationConfig struct {
	MaxSize    string `json:"max_size"` // e.g. "10MB", "512KiB"
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

// LoadConfigFromFile reads a JSON logger configuration.
func LoadConfigFromFile(filename string) (*FileConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &fc, nil
}

// Apply overlays the file configuration on cfg and returns the format
// template to use (format is returned unchanged when the file sets none).
func (fc *FileConfig) Apply(cfg *Config, format string) (string, error) {
	if fc.Format != "" {
		format = fc.Format
	}
	if fc.Directory != "" {
		cfg.Directory = fc.Directory
	}
	if fc.Filename != "" {
		cfg.Filename = fc.Filename
	}
	if fc.Enabled != nil {
		cfg.Enabled = *fc.Enabled
	}
	if fc.Name != "" {
		cfg.Name = fc.Name
	}
	if fc.Mode != "" {
		mode, err := ParseMode(fc.Mode)
		if err != nil {
			return format, err
		}
		cfg.Mode = mode
	}
	if fc.Level != "" {
		level, err := ParseLevel(fc.Level)
		if err != nil {
			return format, err
		}
		cfg.Level = level
	}
	if fc.Color != nil {
		cfg.ColorEnabled = *fc.Color
	}
	if fc.FileCompatibility != nil {
		cfg.FileCompatibility = *fc.FileCompatibility
	}
	switch strings.ToLower(fc.OpenMode) {
	case "":
	case "append", "a", "a+":
		cfg.Truncate = false
	case "truncate", "w", "w+":
		cfg.Truncate = true
	default:
		return format, fmt.Errorf("unknown open mode: %s", fc.OpenMode)
	}
	if fc.MakeParents != nil {
		cfg.MakeParents = *fc.MakeParents
	}
	if r := fc.Rotation; r != nil {
		if r.MaxBackups < 0 {
			return format, fmt.Errorf("max_backups must be non-negative")
		}
		if r.MaxSize != "" {
			size, err := humanize.ParseBytes(r.MaxSize)
			if err != nil {
				return format, fmt.Errorf("parse max_size: %w", err)
			}
			cfg.MaxSize = int64(size)
		}
		cfg.MaxBackups = r.MaxBackups
		cfg.Compress = r.Compress
	}
	return format, nil
}

// ApplyEnvironment overrides cfg from MINIMP3_LOG_* variables.
func ApplyEnvironment(cfg *Config) error {
	if v := os.Getenv(EnvLevel); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLevel, err)
		}
		cfg.Level = level
	}
	if v := os.Getenv(EnvMode); v != "" {
		mode, err := ParseMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMode, err)
		}
		cfg.Mode = mode
	}
	if v := os.Getenv(EnvDir); v != "" {
		cfg.Directory = v
	}
	if v := os.Getenv(EnvColor); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvColor, err)
		}
		cfg.ColorEnabled = on
	}
	return nil
}

// ParseLevel parses a level name such as "info" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARNING, nil
	case "CRITICAL", "ERROR":
		return CRITICAL, nil
	default:
		return INFO, fmt.Errorf("unknown level: %s", s)
	}
}

// ParseMode validates an output mode made of the letters c and f.
func ParseMode(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty output mode")
	}
	for _, r := range s {
		if r != modeConsole && r != modeFile {
			return "", fmt.Errorf("unknown output mode %q: use c, f or cf", s)
		}
	}
	return s, nil
}
