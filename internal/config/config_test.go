package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-tracker/internal/domain"
)

const sampleConfig = `
sources:
  live:
    host: "db.internal"
    user: "tracker"
    password: "from-file"
    database: "civicrm"
  stage:
    host: "stage-db.internal"
    port: 3307
    database: "civicrm_stage"

sheets:
  credentials_file: "creds/service-account.json"
  requests_per_second: 2.5

storage:
  backup_dir: "./test-backups"

tracker:
  settle_seconds: 1

campaigns:
  spring:
    sheet_id: "sheet-spring"
    course_types: [3, 7]
    course_ids: [101]
    landing_pages: ["spring-lp", "spring-offer"]
    submitted_after: "2024-01-15"
    exclude_filter: "cpd.id NOT IN (SELECT participant_id FROM refunds)"
    tabs:
      ad_success: "Spring Ads"
    merge:
      success: "Merged Success"
  autumn:
    sheet_id: "sheet-autumn"
    landing_pages: ["autumn"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	live, err := cfg.Environment("live")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", live.Host)
	assert.Equal(t, 3306, live.Port)
	assert.Equal(t, "from-file", live.Password)

	stage, err := cfg.Environment("stage")
	require.NoError(t, err)
	assert.Equal(t, 3307, stage.Port)

	assert.Equal(t, 2.5, cfg.Sheets.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Sheets.Burst)
	assert.Equal(t, "https://sheets.googleapis.com/v4", cfg.Sheets.BaseURL)
	assert.Equal(t, "./test-backups", cfg.Storage.BackupDir)
	assert.Equal(t, "./data/state", cfg.State.Dir)

	assert.Equal(t, 1, cfg.Tracker.SettleSeconds)
	assert.Equal(t, 3, cfg.Tracker.MaxAttempts)
	assert.Equal(t, 330, cfg.Tracker.ClockOffsetMinutes)
	assert.Equal(t, 5, cfg.Tracker.SettleMinutes)
	assert.Equal(t, 100, cfg.Tracker.LargeBatchThreshold)

	spring, err := cfg.Campaign("spring")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, spring.CourseTypes)
	assert.Equal(t, []int64{101}, spring.CourseIDs)
	assert.True(t, spring.HasCourseRule())
	assert.True(t, spring.HasMerge())

	assert.Equal(t, []string{"autumn", "spring"}, cfg.CampaignNames())
	require.NoError(t, cfg.Validate())
}

func TestTabNames(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	spring, _ := cfg.Campaign("spring")
	assert.Equal(t, "Ctr Course Success", spring.TabName(domain.KindCourseSuccess))
	assert.Equal(t, "Spring Ads", spring.TabName(domain.KindAdSuccess))
	assert.Equal(t, "Ad LP Failed", spring.TabName(domain.KindAdFailed))
	assert.Equal(t, "Merged Success", spring.TabName(domain.KindMergeSuccess))
	assert.Equal(t, "", spring.TabName(domain.KindMergeFailed))

	autumn, _ := cfg.Campaign("autumn")
	assert.False(t, autumn.HasCourseRule())
	assert.False(t, autumn.HasMerge())
	assert.Equal(t, "", autumn.TabName(domain.KindMergeSuccess))
}

func TestUnknownLookups(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	_, err = cfg.Campaign("winter")
	assert.True(t, errors.Is(err, ErrUnknownCampaign))

	_, err = cfg.Environment("dev")
	assert.True(t, errors.Is(err, ErrUnknownEnvironment))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SOURCE_LIVE_PASSWORD", "from-env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BACKUP_S3_BUCKET", "tracker-backups")
	t.Setenv("SHEETS_TOKEN_FILE", "token.json")

	cfg, err := LoadFromEnv(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	live, _ := cfg.Environment("live")
	assert.Equal(t, "from-env", live.Password)
	stage, _ := cfg.Environment("stage")
	assert.Equal(t, "", stage.Password)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Lock.RedisURL)
	assert.Equal(t, "tracker-backups", cfg.Storage.S3Bucket)
	assert.Equal(t, "token.json", cfg.Sheets.TokenFile)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  live:
    host: ""
campaigns:
  broken:
    submitted_after: "15/01/2024"
    tabs:
      bogus_kind: "X"
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `source "live"`)
	assert.Contains(t, err.Error(), "sheet_id is required")
	assert.Contains(t, err.Error(), "submitted_after")
	assert.Contains(t, err.Error(), "bogus_kind")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetAWSProfile(t *testing.T) {
	c := StorageConfig{AWSProfile: "tracker"}
	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	assert.Equal(t, "tracker", c.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", c.GetAWSProfile())
}
