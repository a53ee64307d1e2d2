package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quizline/internal/logging"
	"quizline/internal/testsupport"
)

func TestBuildDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Schedule.WatchLedger = false

	d, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	status := d.Status()
	if status.Running {
		t.Fatal("daemon should not run before Start")
	}
	if status.LedgerPath != cfg.Ledger.Path {
		t.Fatalf("ledger path = %q, want %q", status.LedgerPath, cfg.Ledger.Path)
	}
	if len(status.Jobs) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(status.Jobs))
	}
}

func TestBuildDaemonRejectsMissingTelegramToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Approval.Backend = "telegram"
	cfg.Telegram.BotToken = ""

	if _, err := buildDaemon(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error without a bot token")
	}
}

func TestRunFailsPreflightWithUnreachableTelegram(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[approval]
backend = "telegram"
channel_id = "42"

[telegram]
bot_token = "token"
api_base_url = "http://127.0.0.1:1"

[logging]
level = "error"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", configPath})
	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, errPreflight) {
		t.Fatalf("expected preflight error, got %v", err)
	}
}
