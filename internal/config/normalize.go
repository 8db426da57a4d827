package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeJobs()
	c.normalizeHistory()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("VIDSNATCH_DOWNLOAD_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DownloadDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.DownloadDir, err = expandPath(strings.TrimSpace(c.Paths.DownloadDir)); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if value, ok := os.LookupEnv("VIDSNATCH_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.Binary = strings.TrimSpace(c.Engine.Binary)
	if c.Engine.Binary == "" {
		c.Engine.Binary = defaultEngineBinary
	}
	c.Engine.Format = strings.TrimSpace(c.Engine.Format)
	c.Engine.UserAgent = strings.TrimSpace(c.Engine.UserAgent)
	c.Engine.MergeContainer = strings.ToLower(strings.TrimSpace(c.Engine.MergeContainer))
	if c.Engine.SocketTimeout < 0 {
		c.Engine.SocketTimeout = 0
	}
	args := make([]string, 0, len(c.Engine.ExtraArgs))
	for _, arg := range c.Engine.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Engine.ExtraArgs = args
}

func (c *Config) normalizeJobs() {
	if c.Jobs.MaxConcurrent < 0 {
		c.Jobs.MaxConcurrent = 0
	}
	if c.Jobs.CancelGraceSeconds == 0 {
		c.Jobs.CancelGraceSeconds = defaultJobsCancelGrace
	}
	if c.Jobs.StuckTimeoutSeconds == 0 {
		c.Jobs.StuckTimeoutSeconds = defaultJobsStuckTimeout
	}
	if c.Jobs.MonitorIntervalSeconds == 0 {
		c.Jobs.MonitorIntervalSeconds = defaultJobsMonitorInterval
	}
	if c.Jobs.EvictAfterSeconds == 0 {
		c.Jobs.EvictAfterSeconds = defaultJobsEvictAfter
	}
}

func (c *Config) normalizeHistory() {
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
	if c.History.MatchThreshold == 0 {
		c.History.MatchThreshold = defaultHistoryMatchThreshold
	}
	c.History.MatchScorer = strings.ToLower(strings.TrimSpace(c.History.MatchScorer))
	if c.History.MatchScorer == "" {
		c.History.MatchScorer = defaultHistoryMatchScorer
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("VIDSNATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
