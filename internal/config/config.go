// Package config loads copyscan settings from an optional TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type Server struct {
	Port          int     `toml:"port" validate:"min=1,max=65535"`
	MaxUploadSize int64   `toml:"max_upload_size" validate:"min=1"`
	UploadRate    float64 `toml:"upload_rate" validate:"min=0"`
	UploadBurst   int     `toml:"upload_burst" validate:"min=1"`
}

type Storage struct {
	// Dir holds candidate blobs on disk. Empty keeps them in memory.
	Dir string `toml:"dir"`
}

type Database struct {
	SQLitePath string `toml:"sqlite_path" validate:"required"`
}

type Analysis struct {
	StageTimeScale float64 `toml:"stage_time_scale" validate:"min=0"`
	// Seed fixes the random source. Zero picks a fresh one per process.
	Seed uint64 `toml:"seed"`
}

type Patterns struct {
	// MaxKeywords caps each crowdsourced keyword store. Zero is unbounded.
	MaxKeywords int `toml:"max_keywords" validate:"min=0"`
}

type Logging struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=auto text json"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Storage  Storage  `toml:"storage"`
	Database Database `toml:"database"`
	Analysis Analysis `toml:"analysis"`
	Patterns Patterns `toml:"patterns"`
	Logging  Logging  `toml:"logging"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:          8080,
			MaxUploadSize: 104857600,
			UploadRate:    5,
			UploadBurst:   10,
		},
		Database: Database{SQLitePath: ":memory:"},
		Analysis: Analysis{StageTimeScale: 1},
		Logging:  Logging{Level: "info", Format: "auto"},
	}
}

// Load reads path (if non-empty and present) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(keys []string, set func(string) error) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && v != "" {
				if err := set(v); err != nil {
					errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				}
				return
			}
		}
	}

	num([]string{"COPYSCAN_PORT", "PORT"}, func(v string) (err error) {
		c.Server.Port, err = strconv.Atoi(v)
		return
	})
	num([]string{"COPYSCAN_MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE"}, func(v string) (err error) {
		c.Server.MaxUploadSize, err = strconv.ParseInt(v, 10, 64)
		return
	})
	str(&c.Storage.Dir, "COPYSCAN_UPLOAD_DIR", "UPLOAD_DIR")
	str(&c.Database.SQLitePath, "COPYSCAN_DB_PATH", "DB_PATH")
	num([]string{"COPYSCAN_STAGE_TIME_SCALE"}, func(v string) (err error) {
		c.Analysis.StageTimeScale, err = strconv.ParseFloat(v, 64)
		return
	})
	num([]string{"COPYSCAN_SEED"}, func(v string) (err error) {
		c.Analysis.Seed, err = strconv.ParseUint(v, 10, 64)
		return
	})
	num([]string{"COPYSCAN_MAX_KEYWORDS"}, func(v string) (err error) {
		c.Patterns.MaxKeywords, err = strconv.Atoi(v)
		return
	})
	str(&c.Logging.Level, "COPYSCAN_LOG_LEVEL")
	str(&c.Logging.Format, "COPYSCAN_LOG_FORMAT")

	return errors.Join(errs...)
}
