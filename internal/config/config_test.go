package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SCOUT_BOT_TOKEN", "123456:ABCDEF")
	t.Setenv("SCOUT_ADMINS", "44870326, 64513378")
	t.Setenv("SCOUT_API_ID", "12345")
	t.Setenv("SCOUT_API_HASH", "0123456789abcdef")
	t.Setenv("SCOUT_PHONE", "+390000000000")
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !slices.Equal(cfg.Telegram.AdminIDs, []int64{44870326, 64513378}) {
		t.Errorf("AdminIDs = %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Directory.APIID != 12345 {
		t.Errorf("APIID = %d, want 12345", cfg.Directory.APIID)
	}
	if cfg.Limits.DailyCap != DefaultDailyCap || cfg.Limits.BatchCap != DefaultBatchCap {
		t.Errorf("limits = %+v, want defaults", cfg.Limits)
	}
	if cfg.Limits.Cooldown != DefaultCooldown {
		t.Errorf("Cooldown = %v, want %v", cfg.Limits.Cooldown, DefaultCooldown)
	}
	if cfg.Directory.CallTimeout != DefaultCallTimeout {
		t.Errorf("CallTimeout = %v, want %v", cfg.Directory.CallTimeout, DefaultCallTimeout)
	}
	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	task, ok := cfg.Scheduler.Tasks["sql_maintenance"]
	if !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("sql_maintenance task = %+v, present %v", task, ok)
	}
	if !cfg.IsAdmin(64513378) || cfg.IsAdmin(1) {
		t.Error("IsAdmin does not match the configured list")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "limits:\n  daily_cap: 50\n  cooldown: 72h\nstats:\n  dir: /tmp/scout-stats\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Limits.DailyCap != 50 {
		t.Errorf("DailyCap = %d, want 50", cfg.Limits.DailyCap)
	}
	if cfg.Limits.Cooldown != 72*time.Hour {
		t.Errorf("Cooldown = %v, want 72h", cfg.Limits.Cooldown)
	}
	if cfg.Stats.Dir != "/tmp/scout-stats" {
		t.Errorf("Stats.Dir = %q", cfg.Stats.Dir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "phone without plus", env: map[string]string{"SCOUT_PHONE": "390000000000"}},
		{name: "malformed admins", env: map[string]string{"SCOUT_ADMINS": "12,abc"}},
		{name: "empty admins", env: map[string]string{"SCOUT_ADMINS": " "}},
		{name: "missing token", env: map[string]string{"SCOUT_BOT_TOKEN": ""}},
		{name: "zero api id", env: map[string]string{"SCOUT_API_ID": "0"}},
		{name: "bad log level", env: map[string]string{"SCOUT_LOG_LEVEL": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			if !errors.Is(err, ErrConfiguration) || !apperrors.HasCode(err, apperrors.CodeConfig) {
				t.Fatalf("Load() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestParseAdminIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    []int64
		wantErr bool
	}{
		{raw: "1", want: []int64{1}},
		{raw: "1,2,3", want: []int64{1, 2, 3}},
		{raw: " 7 , 7 ,8", want: []int64{7, 8}},
		{raw: "", wantErr: true},
		{raw: "1,,2", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "x", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAdminIDs(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAdminIDs(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !slices.Equal(got, tt.want) {
			t.Errorf("ParseAdminIDs(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
