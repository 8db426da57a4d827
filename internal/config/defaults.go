package config

const (
	defaultConfigPath            = "~/.config/vidsnatch/config.toml"
	defaultDownloadDir           = "~/Documents/Torrent/videos"
	defaultStateDir              = "~/.local/share/vidsnatch"
	defaultLogDir                = "~/.local/share/vidsnatch/logs"
	defaultAPIBind               = "127.0.0.1:8080"
	defaultEngineBinary          = "yt-dlp"
	defaultEngineSocketTimeout   = 180
	defaultEngineRetries         = 5
	defaultEngineFragmentRetries = 5
	defaultJobsCancelGrace       = 5
	defaultJobsStuckTimeout      = 30
	defaultJobsMonitorInterval   = 30
	defaultJobsEvictAfter        = 300
	defaultHistoryRetentionDays  = 7
	defaultHistoryMatchThreshold = 0.80
	defaultHistoryMatchScorer    = "words"
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	settingsFileName             = "settings.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Engine: Engine{
			Binary:        defaultEngineBinary,
			SocketTimeout: defaultEngineSocketTimeout,
			Retries:       defaultEngineRetries,
			FragmentRetry: defaultEngineFragmentRetries,
			NoPlaylist:    true,
		},
		Jobs: Jobs{
			CancelGraceSeconds:     defaultJobsCancelGrace,
			StuckTimeoutSeconds:    defaultJobsStuckTimeout,
			MonitorIntervalSeconds: defaultJobsMonitorInterval,
			EvictAfterSeconds:      defaultJobsEvictAfter,
		},
		History: History{
			Enabled:        true,
			RetentionDays:  defaultHistoryRetentionDays,
			MatchThreshold: defaultHistoryMatchThreshold,
			MatchScorer:    defaultHistoryMatchScorer,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
