package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
}

// Engine contains settings for the external extraction tool.
type Engine struct {
	Binary         string   `toml:"binary"`
	Format         string   `toml:"format"`
	SocketTimeout  int      `toml:"socket_timeout"`
	Retries        int      `toml:"retries"`
	FragmentRetry  int      `toml:"fragment_retries"`
	RestrictNames  bool     `toml:"restrict_filenames"`
	ExtraArgs      []string `toml:"extra_args"`
	UserAgent      string   `toml:"user_agent"`
	NoPlaylist     bool     `toml:"no_playlist"`
	MergeContainer string   `toml:"merge_output_format"`
}

// Jobs contains job lifecycle timing and concurrency limits.
type Jobs struct {
	MaxConcurrent          int `toml:"max_concurrent"`
	CancelGraceSeconds     int `toml:"cancel_grace_seconds"`
	StuckTimeoutSeconds    int `toml:"stuck_timeout_seconds"`
	MonitorIntervalSeconds int `toml:"monitor_interval_seconds"`
	EvictAfterSeconds      int `toml:"evict_after_seconds"`
}

// History contains configuration for the persistent download ledger.
type History struct {
	Enabled        bool    `toml:"enabled"`
	RetentionDays  int     `toml:"retention_days"`
	MatchThreshold float64 `toml:"match_threshold"`
	MatchScorer    string  `toml:"match_scorer"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for VidSnatch.
//
// Configuration sections by subsystem:
//   - Paths: download destination, state and log directories, API bind address
//   - Engine: yt-dlp binary and invocation flags
//   - Jobs: concurrency, cancellation grace period, stuck/eviction timers
//   - History: SQLite download ledger and filename matching threshold
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Jobs          Jobs          `toml:"jobs"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.applySettings(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidsnatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The download
// directory is left to preflight so a missing destination is reported instead
// of silently created on a detached volume.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// SettingsPath returns the location of the persisted runtime settings.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Paths.StateDir, settingsFileName)
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vidsnatch.lock")
}

// PIDPath returns where the running server records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "vidsnatch.pid")
}

// CancelGrace is the bounded wait for a cancelled execution to stop.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Jobs.CancelGraceSeconds) * time.Second
}

// StuckTimeout is how long a job may stay in preparing before it is failed.
func (c *Config) StuckTimeout() time.Duration {
	return time.Duration(c.Jobs.StuckTimeoutSeconds) * time.Second
}

// MonitorInterval is the period of the stuck-job and eviction sweep.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Jobs.MonitorIntervalSeconds) * time.Second
}

// EvictAfter is the idle age after which finished jobs leave the store.
func (c *Config) EvictAfter() time.Duration {
	return time.Duration(c.Jobs.EvictAfterSeconds) * time.Second
}

// APIBaseURL returns the HTTP base URL clients use to reach the server.
func (c *Config) APIBaseURL() string {
	return "http://" + strings.TrimSpace(c.Paths.APIBind)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
