package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"quizline/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	chdir(t, t.TempDir())
	t.Setenv("QUIZLINE_CHANNEL_ID", "12345")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "quizline")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Ledger.Path != filepath.Join(wantData, "publish_queue.csv") {
		t.Fatalf("unexpected ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.Approval.ChannelID != "12345" {
		t.Fatalf("expected channel id from env, got %q", cfg.Approval.ChannelID)
	}
	if cfg.Buffer.LowWatermark != 5 || cfg.Buffer.Target != 10 {
		t.Fatalf("unexpected buffer defaults: %+v", cfg.Buffer)
	}
	if cfg.ApprovalTimeout().Seconds() != 3600 {
		t.Fatalf("unexpected approval timeout: %s", cfg.ApprovalTimeout())
	}
}

func TestLoadRequiresChannelForTelegram(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("QUIZLINE_CHANNEL_ID", "")

	_, _, _, err := config.Load("")
	if err == nil || !strings.Contains(err.Error(), "approval.channel_id") {
		t.Fatalf("expected channel id validation error, got %v", err)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(tempDir, "data")
	cfg.Paths.LogDir = filepath.Join(tempDir, "logs")
	cfg.Ledger.Backend = "sqlite"
	cfg.Approval.Backend = "auto"
	cfg.Approval.AutoChoice = "No"
	cfg.Buffer.LowWatermark = 2
	cfg.Buffer.Target = 4

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if loaded.Ledger.Path != filepath.Join(tempDir, "data", "publish_queue.db") {
		t.Fatalf("expected sqlite ledger path, got %q", loaded.Ledger.Path)
	}
	if loaded.Approval.AutoChoice != "No" {
		t.Fatalf("unexpected auto choice: %q", loaded.Approval.AutoChoice)
	}
	if loaded.Buffer.LowWatermark != 2 || loaded.Buffer.Target != 4 {
		t.Fatalf("unexpected buffer: %+v", loaded.Buffer)
	}
}

func TestLoadLegacyOpsYAML(t *testing.T) {
	base := t.TempDir()
	configDir := filepath.Join(base, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	opsPath := filepath.Join(configDir, "ops.yml")
	ops := "buffer:\n  low_watermark: 3\n  target: 8\ntelegram:\n  chat_id: -100200300\n"
	if err := os.WriteFile(opsPath, []byte(ops), 0o644); err != nil {
		t.Fatalf("write ops.yml: %v", err)
	}
	t.Setenv("HOME", t.TempDir())

	cfg, _, exists, err := config.Load(opsPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected legacy config to exist")
	}
	if cfg.Buffer.LowWatermark != 3 || cfg.Buffer.Target != 8 {
		t.Fatalf("unexpected buffer from ops.yml: %+v", cfg.Buffer)
	}
	if cfg.Approval.ChannelID != "-100200300" {
		t.Fatalf("unexpected chat id: %q", cfg.Approval.ChannelID)
	}
	want := filepath.Join(base, "data", "publish_queue.csv")
	if cfg.Ledger.Path != want {
		t.Fatalf("expected ledger at %q, got %q", want, cfg.Ledger.Path)
	}
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Path = "/tmp/ledger.csv"
	cfg.Approval.Backend = "auto"

	cfg.Ledger.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ledger backend error")
	}

	cfg.Ledger.Backend = "csv"
	cfg.Approval.Backend = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected approval backend error")
	}

	cfg.Approval.Backend = "auto"
	cfg.Buffer.LowWatermark = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected watermark error")
	}
}

func TestCreateSampleWritesParsableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Buffer.Target != 10 {
		t.Fatalf("unexpected sample target: %d", cfg.Buffer.Target)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
