package config

const (
	defaultConfigPath           = "~/.config/ferry/config.toml"
	defaultDataRoot             = "~/.local/share/ferry"
	defaultStagingSubdir        = "tmp"
	defaultStateSubdir          = "logs"
	defaultPublishSubdir        = "published"
	defaultFetchCommand         = "aihubshell"
	defaultArchivePattern       = "*.zip"
	defaultSafetyFactor         = 2.0
	minSafetyFactor             = 1.0
	maxSafetyFactor             = 10.0
	defaultTransformCommand     = "ffmpeg"
	defaultTransformOutputExt   = ".webp"
	defaultTransformTargetSize  = 384
	defaultTransformQuality     = 90
	defaultTransformWorkers     = 4
	defaultUnitQueue            = 1
	defaultFetchQueue           = 2
	defaultUnpackQueue          = 5
	defaultTransformQueue       = 50
	defaultDoneQueue            = 50
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultNotifyRequestTimeout = 10
	defaultPublishPrefix        = ""
	datasetKeyEnv               = "FERRY_DATASET_KEY"
	notificationTopicEnv        = "FERRY_NTFY_TOPIC"
	PublishModeDirectory        = "directory"
	PublishModeCommand          = "command"
	LedgerBackendJSON           = "json"
	LedgerBackendSQLite         = "sqlite"
)

var (
	defaultFetchArgs       = []string{"-mode", "d", "-datasetkey", "{dataset}", "-filekey", "{unit}", "-aihubapikey", "$AIHUB_API_KEY"}
	defaultListingArgs     = []string{"-mode", "l", "-datasetkey", "{dataset}"}
	defaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}
	defaultCopyExtensions  = []string{".json"}
	defaultTransformArgs   = []string{
		"-y", "-loglevel", "error", "-i", "{input}",
		"-vf", "scale={size}:{size}:force_original_aspect_ratio=decrease,pad={size}:{size}:(ow-iw)/2:(oh-ih)/2",
		"-quality", "{quality}", "{output}",
	}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataRoot: defaultDataRoot,
		},
		Fetch: Fetch{
			Command:        defaultFetchCommand,
			Args:           append([]string(nil), defaultFetchArgs...),
			ArchivePattern: defaultArchivePattern,
		},
		Admission: Admission{
			Enabled:        true,
			SafetyFactor:   defaultSafetyFactor,
			ListingCommand: defaultFetchCommand,
			ListingArgs:    append([]string(nil), defaultListingArgs...),
		},
		Transform: Transform{
			Command:         defaultTransformCommand,
			Args:            append([]string(nil), defaultTransformArgs...),
			OutputExt:       defaultTransformOutputExt,
			ImageExtensions: append([]string(nil), defaultImageExtensions...),
			CopyExtensions:  append([]string(nil), defaultCopyExtensions...),
			TargetSize:      defaultTransformTargetSize,
			Quality:         defaultTransformQuality,
			Workers:         defaultTransformWorkers,
		},
		Publish: Publish{
			Mode:   PublishModeDirectory,
			Prefix: defaultPublishPrefix,
		},
		Pipeline: Pipeline{
			UnitQueue:      defaultUnitQueue,
			FetchQueue:     defaultFetchQueue,
			UnpackQueue:    defaultUnpackQueue,
			TransformQueue: defaultTransformQueue,
			DoneQueue:      defaultDoneQueue,
		},
		Ledger: Ledger{
			Backend: LedgerBackendJSON,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Run:            true,
			Errors:         true,
		},
	}
}
