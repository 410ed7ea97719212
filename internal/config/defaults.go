package config

const (
	defaultMediaDir             = "/mnt/ext1"
	defaultStateDir             = "~/.local/share/mediaagent"
	defaultLogDir               = "~/.local/share/mediaagent/logs"
	defaultDatabaseDriver       = "sqlite"
	defaultDatabaseMaxRetries   = 3
	defaultCacheBackend         = "memory"
	defaultCacheTTLMinutes      = 90
	defaultRedisPort            = "6379"
	defaultCacheKeyPrefix       = "mediaagent"
	defaultScanInterval         = 300
	defaultDownloadCheckSeconds = 5
	defaultReturnBasePath       = "/mnt/ext1/torrents"
	defaultRemoteConversionDir  = "conversions"
	defaultMinFreeGiB           = 5
	defaultWatchSettleSeconds   = 30
	defaultSSHUser              = "pi"
	defaultSSHPort              = 22
	defaultSSHTimeoutSeconds    = 30
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultTransmissionBinary   = "transmission-remote"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir: defaultMediaDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Database: Database{
			Driver:     defaultDatabaseDriver,
			MaxRetries: defaultDatabaseMaxRetries,
		},
		Cache: Cache{
			Backend:    defaultCacheBackend,
			TTLMinutes: defaultCacheTTLMinutes,
			KeyPrefix:  defaultCacheKeyPrefix,
		},
		Agent: Agent{
			ScanInterval:         defaultScanInterval,
			DownloadCheckSeconds: defaultDownloadCheckSeconds,
			ReturnBasePath:       defaultReturnBasePath,
			RemoteConversionDir:  defaultRemoteConversionDir,
			MinFreeGiB:           defaultMinFreeGiB,
			ScrubFilenames:       true,
			Thumbnails:           true,
			WatchSettleSeconds:   defaultWatchSettleSeconds,
		},
		SSH: SSH{
			DefaultUser: defaultSSHUser,
			Users: map[string]string{
				"192.168.0.25": "conor",
				"192.168.0.28": "conor",
			},
			Port:           defaultSSHPort,
			TimeoutSeconds: defaultSSHTimeoutSeconds,
		},
		Transcode: Transcode{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			LowPriority:   true,
			VerifyOutput:  true,
		},
		Transmission: Transmission{
			Binary: defaultTransmissionBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
