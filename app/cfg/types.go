package cfg

import "time"

const (
	SourceAPI  = "api"
	SourceAtom = "atom"

	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
	LedgerMemory = "memory"

	BackupNone  = "none"
	BackupLocal = "local"
	BackupGCS   = "gcs"
	BackupS3    = "s3"
)

type Cfg struct {
	// Storage
	DBPath        string
	LedgerDriver  string
	RedisAddr     string
	RedisPassword string

	// Application configuration
	JobsDir           string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Source
	RedditSource       string
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	ProbeTimeout       time.Duration

	// Destination
	LemmyInstance string
	LemmyUsername string
	LemmyPassword string

	// Backups
	BackupDriver       string
	BackupDir          string
	BackupBucket       string
	BackupObject       string
	BackupInterval     time.Duration
	GCSCredentialsFile string
	AWSRegion          string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFormat string
	Version   string
}
