package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/campaign-tracker/internal/domain"
)

var (
	// ErrUnknownCampaign is returned when a campaign name is not configured.
	ErrUnknownCampaign = errors.New("unknown campaign")
	// ErrUnknownEnvironment is returned when a source environment is not configured.
	ErrUnknownEnvironment = errors.New("unknown environment")
)

// DefaultEnvironment is used when a run names no environment.
const DefaultEnvironment = "live"

// Default tab names, used when a campaign has no override.
var DefaultTabNames = map[domain.Kind]string{
	domain.KindCourseSuccess: "Ctr Course Success",
	domain.KindCourseFailed:  "Ctr Course Failed",
	domain.KindAdSuccess:     "Ad LP Success",
	domain.KindAdFailed:      "Ad LP Failed",
}

// Config holds all configuration for the application
type Config struct {
	Sources   map[string]SourceConfig `yaml:"sources"`
	Sheets    SheetsConfig            `yaml:"sheets"`
	Storage   StorageConfig           `yaml:"storage"`
	State     StateConfig             `yaml:"state"`
	Lock      LockConfig              `yaml:"lock"`
	Metrics   MetricsConfig           `yaml:"metrics"`
	Logging   LoggingConfig           `yaml:"logging"`
	Tracker   TrackerConfig           `yaml:"tracker"`
	Campaigns map[string]Campaign     `yaml:"campaigns"`
}

// SourceConfig holds MySQL connection settings for one environment.
type SourceConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the dial/read timeout as a duration
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SheetsConfig holds Google Sheets API settings
type SheetsConfig struct {
	CredentialsFile   string  `yaml:"credentials_file"` // service account or OAuth client JSON
	TokenFile         string  `yaml:"token_file"`       // stored user token, used with an OAuth client
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
}

// Timeout returns the HTTP timeout as a duration
func (c SheetsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig holds backup settings. S3 mirroring is enabled by S3Bucket.
type StorageConfig struct {
	BackupDir    string `yaml:"backup_dir"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	AWSRegion    string `yaml:"aws_region"`
	AWSProfile   string `yaml:"aws_profile"` // Empty string uses default credential chain
	AWSAccessKey string `yaml:"aws_access_key"`
	AWSSecretKey string `yaml:"aws_secret_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// StateConfig locates the counter ledgers.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// LockConfig selects the run lock backend. Redis wins when both are set.
type LockConfig struct {
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	TTLSeconds  int    `yaml:"ttl_seconds"`
}

// TTL returns the lock TTL as a duration
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MetricsConfig holds Prometheus Pushgateway settings
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// TrackerConfig holds sync pipeline tuning.
type TrackerConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	SettleSeconds       int `yaml:"settle_seconds"`        // wait between append and verification read
	ClockOffsetMinutes  int `yaml:"clock_offset_minutes"`  // source clock offset from server NOW()
	SettleMinutes       int `yaml:"settle_minutes"`        // records newer than this are left for the next run
	LargeBatchThreshold int `yaml:"large_batch_threshold"` // extraction size that triggers a warning
}

// Settle returns the post-write propagation wait
func (c TrackerConfig) Settle() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// Campaign is one named sync target: which records belong to it and where
// they land.
type Campaign struct {
	SheetID        string                 `yaml:"sheet_id"`
	CourseTypes    []int64                `yaml:"course_types"`
	CourseIDs      []int64                `yaml:"course_ids"`
	LandingPages   []string               `yaml:"landing_pages"`
	SubmittedAfter string                 `yaml:"submitted_after"` // YYYY-MM-DD
	ExcludeFilter  string                 `yaml:"exclude_filter"`  // raw SQL fragment, course path only
	Tabs           map[domain.Kind]string `yaml:"tabs"`
	Merge          *MergeConfig           `yaml:"merge"`
}

// MergeConfig names the merge target tabs. Either may be empty.
type MergeConfig struct {
	Success string `yaml:"success"`
	Failed  string `yaml:"failed"`
}

// Tab returns the merge tab for a status, or "".
func (m *MergeConfig) Tab(status domain.SyncStatus) string {
	if m == nil {
		return ""
	}
	if status == domain.SyncSuccess {
		return m.Success
	}
	return m.Failed
}

// TabName returns the tab for kind, falling back to the defaults.
func (c Campaign) TabName(kind domain.Kind) string {
	if name := c.Tabs[kind]; name != "" {
		return name
	}
	switch kind {
	case domain.KindMergeSuccess:
		return c.Merge.Tab(domain.SyncSuccess)
	case domain.KindMergeFailed:
		return c.Merge.Tab(domain.SyncFailed)
	}
	return DefaultTabNames[kind]
}

// HasCourseRule reports whether the course path has any inclusion rule.
func (c Campaign) HasCourseRule() bool {
	return len(c.CourseTypes) > 0 || len(c.CourseIDs) > 0
}

// HasMerge reports whether any merge tab is configured.
func (c Campaign) HasMerge() bool {
	return c.Merge != nil && (c.Merge.Success != "" || c.Merge.Failed != "")
}

// Campaign looks up a campaign by name.
func (c *Config) Campaign(name string) (Campaign, error) {
	camp, ok := c.Campaigns[name]
	if !ok {
		return Campaign{}, fmt.Errorf("%w: %q", ErrUnknownCampaign, name)
	}
	return camp, nil
}

// Environment looks up source settings by environment name.
func (c *Config) Environment(name string) (SourceConfig, error) {
	src, ok := c.Sources[name]
	if !ok {
		return SourceConfig{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	return src, nil
}

// CampaignNames returns configured campaigns sorted by name.
func (c *Config) CampaignNames() []string {
	names := make([]string, 0, len(c.Campaigns))
	for name := range c.Campaigns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks settings a run cannot proceed without.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Sources) == 0 {
		problems = append(problems, "no source environments configured")
	}
	for name, src := range c.Sources {
		if src.Host == "" || src.Database == "" {
			problems = append(problems, fmt.Sprintf("source %q: host and database are required", name))
		}
	}
	for _, name := range c.CampaignNames() {
		camp := c.Campaigns[name]
		if camp.SheetID == "" {
			problems = append(problems, fmt.Sprintf("campaign %q: sheet_id is required", name))
		}
		if camp.SubmittedAfter != "" {
			if _, err := time.Parse("2006-01-02", camp.SubmittedAfter); err != nil {
				problems = append(problems, fmt.Sprintf("campaign %q: submitted_after must be YYYY-MM-DD", name))
			}
		}
		for kind := range camp.Tabs {
			if !kind.IsValid() {
				problems = append(problems, fmt.Sprintf("campaign %q: unknown tab kind %q", name, kind))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	for name, src := range cfg.Sources {
		if src.Port == 0 {
			src.Port = 3306
		}
		if src.TimeoutSeconds == 0 {
			src.TimeoutSeconds = 30
		}
		cfg.Sources[name] = src
	}
	if cfg.Sheets.BaseURL == "" {
		cfg.Sheets.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if cfg.Sheets.RequestsPerSecond == 0 {
		cfg.Sheets.RequestsPerSecond = 1
	}
	if cfg.Sheets.Burst == 0 {
		cfg.Sheets.Burst = 5
	}
	if cfg.Sheets.TimeoutSeconds == 0 {
		cfg.Sheets.TimeoutSeconds = 60
	}
	if cfg.Sheets.MaxRetries == 0 {
		cfg.Sheets.MaxRetries = 3
	}
	if cfg.Storage.BackupDir == "" {
		cfg.Storage.BackupDir = "./data/backups"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = "./data/state"
	}
	if cfg.Lock.TTLSeconds == 0 {
		cfg.Lock.TTLSeconds = 1800
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "campaign_tracker"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Tracker.MaxAttempts == 0 {
		cfg.Tracker.MaxAttempts = 3
	}
	if cfg.Tracker.SettleSeconds == 0 {
		cfg.Tracker.SettleSeconds = 3
	}
	if cfg.Tracker.ClockOffsetMinutes == 0 {
		cfg.Tracker.ClockOffsetMinutes = 330
	}
	if cfg.Tracker.SettleMinutes == 0 {
		cfg.Tracker.SettleMinutes = 5
	}
	if cfg.Tracker.LargeBatchThreshold == 0 {
		cfg.Tracker.LargeBatchThreshold = 100
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// SOURCE_LIVE_PASSWORD, SOURCE_STAGE_PASSWORD, ...
	for name, src := range cfg.Sources {
		if v := os.Getenv("SOURCE_" + strings.ToUpper(name) + "_PASSWORD"); v != "" {
			src.Password = v
			cfg.Sources[name] = src
		}
	}
	if v := os.Getenv("SHEETS_CREDENTIALS_FILE"); v != "" {
		cfg.Sheets.CredentialsFile = v
	}
	if v := os.Getenv("SHEETS_TOKEN_FILE"); v != "" {
		cfg.Sheets.TokenFile = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Lock.RedisURL = v
	}
	if v := os.Getenv("LOCK_DATABASE_URL"); v != "" {
		cfg.Lock.DatabaseURL = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("BACKUP_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" && cfg.Storage.AWSAccessKey == "" {
		cfg.Storage.AWSAccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" && cfg.Storage.AWSSecretKey == "" {
		cfg.Storage.AWSSecretKey = v
	}

	return cfg, nil
}
