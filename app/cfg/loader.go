package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath        string `long:"db-path" env:"DB_PATH" default:"./data/mirror.db" description:"Path to the sqlite ledger database"`
	LedgerDriver  string `long:"ledger-driver" env:"LEDGER_DRIVER" default:"sqlite" choice:"sqlite" choice:"redis" choice:"memory" description:"Ledger storage backend"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the redis ledger"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`

	// Application configuration
	JobsDir           string `long:"jobs-dir" env:"JOBS_DIR" default:"./jobs" description:"Directory containing mirror job files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Source configuration
	RedditSource       string `long:"reddit-source" env:"REDDIT_SOURCE" default:"api" choice:"api" choice:"atom" description:"Reddit listing source"`
	RedditClientID     string `long:"reddit-client-id" env:"REDDIT_CLIENT_ID" description:"Reddit OAuth client id"`
	RedditClientSecret string `long:"reddit-client-secret" env:"REDDIT_CLIENT_SECRET" description:"Reddit OAuth client secret"`
	RedditUsername     string `long:"reddit-username" env:"REDDIT_USERNAME" description:"Reddit account username"`
	RedditPassword     string `long:"reddit-password" env:"REDDIT_PASSWORD" description:"Reddit account password"`
	ProbeTimeout       int    `long:"probe-timeout" env:"PROBE_TIMEOUT" default:"10" description:"Image probe timeout in seconds"`

	// Destination configuration
	LemmyInstance string `long:"lemmy-instance" env:"LEMMY_INSTANCE" description:"Lemmy instance host (required)"`
	LemmyUsername string `long:"lemmy-username" env:"LEMMY_USERNAME" description:"Lemmy bot username (required)"`
	LemmyPassword string `long:"lemmy-password" env:"LEMMY_PASSWORD" description:"Lemmy bot password (required)"`

	// Backup configuration
	BackupDriver       string `long:"backup-driver" env:"BACKUP_DRIVER" default:"none" choice:"none" choice:"local" choice:"gcs" choice:"s3" description:"Ledger backup backend"`
	BackupDir          string `long:"backup-dir" env:"BACKUP_DIR" default:"./backups" description:"Directory for local backups"`
	BackupBucket       string `long:"backup-bucket" env:"BACKUP_BUCKET" description:"Bucket for gcs or s3 backups"`
	BackupObject       string `long:"backup-object" env:"BACKUP_OBJECT" default:"mirror.db" description:"Object name of the ledger backup"`
	BackupInterval     int    `long:"backup-interval" env:"BACKUP_INTERVAL" default:"3600" description:"Backup interval in seconds"`
	GCSCredentialsFile string `long:"gcs-credentials-file" env:"GCS_CREDENTIALS_FILE" description:"Service account file for GCS (optional)"`
	AWSRegion          string `long:"aws-region" env:"AWS_REGION" default:"us-east-1" description:"AWS region for S3 backups"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"lemmy-mirror/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps and weekday rules (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
}

var globalCfg *Cfg

// Load reads .env, the environment and command line flags. It returns a nil
// config when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := load(os.Args[1:], flags.Default)
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func load(args []string, options flags.Options) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, options)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		LedgerDriver:       raw.LedgerDriver,
		RedisAddr:          raw.RedisAddr,
		RedisPassword:      raw.RedisPassword,
		JobsDir:            raw.JobsDir,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		APIAccessKey:       raw.APIAccessKey,
		RedditSource:       raw.RedditSource,
		RedditClientID:     raw.RedditClientID,
		RedditClientSecret: raw.RedditClientSecret,
		RedditUsername:     raw.RedditUsername,
		RedditPassword:     raw.RedditPassword,
		ProbeTimeout:       time.Duration(raw.ProbeTimeout) * time.Second,
		LemmyInstance:      raw.LemmyInstance,
		LemmyUsername:      raw.LemmyUsername,
		LemmyPassword:      raw.LemmyPassword,
		BackupDriver:       raw.BackupDriver,
		BackupDir:          raw.BackupDir,
		BackupBucket:       raw.BackupBucket,
		BackupObject:       raw.BackupObject,
		BackupInterval:     time.Duration(raw.BackupInterval) * time.Second,
		GCSCredentialsFile: raw.GCSCredentialsFile,
		AWSRegion:          raw.AWSRegion,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		LogFormat:          raw.LogFormat,
		Version:            GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	requiredFields := []struct {
		name  string
		value string
	}{
		{"LEMMY_INSTANCE", c.LemmyInstance},
		{"LEMMY_USERNAME", c.LemmyUsername},
		{"LEMMY_PASSWORD", c.LemmyPassword},
	}
	for _, field := range requiredFields {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	if c.RedditSource == SourceAPI && (c.RedditClientID == "" || c.RedditClientSecret == "" || c.RedditUsername == "" || c.RedditPassword == "") {
		return errors.New("REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME and REDDIT_PASSWORD are required for the api source")
	}

	if c.WorkerCount < 1 {
		return errors.New("WORKER_COUNT must be at least 1")
	}
	if c.SchedulerInterval < 1 {
		return errors.New("SCHEDULER_INTERVAL must be at least 1")
	}

	if c.BackupDriver != BackupNone {
		if c.LedgerDriver != LedgerSQLite {
			return fmt.Errorf("backups require the sqlite ledger, got %s", c.LedgerDriver)
		}
		if (c.BackupDriver == BackupGCS || c.BackupDriver == BackupS3) && c.BackupBucket == "" {
			return fmt.Errorf("BACKUP_BUCKET is required for the %s backup driver", c.BackupDriver)
		}
		if c.BackupInterval <= 0 {
			return errors.New("BACKUP_INTERVAL must be positive")
		}
	}

	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
