package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return errors.New("paths.download_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	host, port, err := net.SplitHostPort(c.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	if port == "" {
		return errors.New("paths.api_bind must include a port")
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("paths.api_bind must be a loopback address, got %q", host)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if strings.TrimSpace(c.Engine.Binary) == "" {
		return errors.New("engine.binary must be set")
	}
	if c.Engine.Retries < 0 {
		return errors.New("engine.retries must be >= 0")
	}
	if c.Engine.FragmentRetry < 0 {
		return errors.New("engine.fragment_retries must be >= 0")
	}
	switch c.Engine.MergeContainer {
	case "", "mp4", "mkv", "webm", "mov", "flv", "avi":
	default:
		return fmt.Errorf("engine.merge_output_format must be one of mp4, mkv, webm, mov, flv, avi; got %q", c.Engine.MergeContainer)
	}
	return nil
}

func (c *Config) validateJobs() error {
	return ensurePositiveMap(map[string]int{
		"jobs.cancel_grace_seconds":     c.Jobs.CancelGraceSeconds,
		"jobs.stuck_timeout_seconds":    c.Jobs.StuckTimeoutSeconds,
		"jobs.monitor_interval_seconds": c.Jobs.MonitorIntervalSeconds,
		"jobs.evict_after_seconds":      c.Jobs.EvictAfterSeconds,
	})
}

func (c *Config) validateHistory() error {
	if c.History.MatchThreshold <= 0 || c.History.MatchThreshold > 1 {
		return errors.New("history.match_threshold must be between 0 and 1")
	}
	switch c.History.MatchScorer {
	case "words", "cosine":
		return nil
	default:
		return fmt.Errorf("history.match_scorer must be words or cosine; got %q", c.History.MatchScorer)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
