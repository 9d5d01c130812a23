package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "uniscal/internal/log"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for serve mode.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone lesson wall-clock times are anchored
	// in (e.g. "Europe/Minsk").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Input is the timetable export to convert: a file path or an
	// http(s) URL.
	Input string `yaml:"input" json:"input"`

	// Output is the path the rendered calendar is written to.
	Output string `yaml:"output" json:"output"`

	// CacheDir is where remote inputs and their HTTP validators are
	// cached between fetches.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// SemesterEnd ("YYYY-MM-DD") is the last day covered by recurring
	// lessons; weekly rules stop at the end of this day.
	SemesterEnd string `yaml:"semester_end" json:"semester_end"`

	// UIDDomain is the suffix of generated event UIDs.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`

	// ProdID names the generator in the calendar header.
	ProdID string `yaml:"prodid" json:"prodid"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// for rebuilding the served document in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the default number of future days covered by the
	// occurrence preview.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// serve-mode endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Minsk",
		Input:       "./timetable.json",
		Output:      "./timetable_ls_2025.ics",
		CacheDir:    "./var/timetable-cache",
		SemesterEnd: "2025-05-31",
		UIDDomain:   "uniscal",
		ProdID:      "-//uniscal//Timetable Export//EN",
		RefreshCron: "*/30 * * * *",
		HorizonDays: 14,
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Minsk"
	}
	if c.Input == "" {
		c.Input = "./timetable.json"
	}
	if c.Output == "" {
		c.Output = "./timetable_ls_2025.ics"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/timetable-cache"
	}
	if c.SemesterEnd == "" {
		c.SemesterEnd = "2025-05-31"
	}
	if c.UIDDomain == "" {
		c.UIDDomain = "uniscal"
	}
	if c.ProdID == "" {
		c.ProdID = "-//uniscal//Timetable Export//EN"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 14
	}
}

// Location resolves the configured timezone, falling back to the local
// zone when the name is empty or unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// SemesterEndTime resolves the configured semester end to the last second
// of that day in loc.
func (c *Config) SemesterEndTime(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", c.SemesterEnd, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: bad semester_end %q: %w", c.SemesterEnd, err)
	}
	return day.AddDate(0, 0, 1).Add(-time.Second), nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".uniscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function:
//
//	cfg, _ := config.Load(path)
//	// ... mutate cfg ...
//	if err := cfg.Save(path); err != nil { ... }
func (c *Config) Save(path string) error {
	return Save(path, c)
}
