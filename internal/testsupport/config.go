package testsupport

import (
	"path/filepath"
	"testing"

	"quizline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The approval gateway defaults to the auto backend so no test talks to a
// network service by accident.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Ledger.Path = filepath.Join(cfgVal.Paths.DataDir, "publish_queue.csv")
	cfgVal.Ledger.LockTimeoutSeconds = 2
	cfgVal.Approval.Backend = "auto"
	cfgVal.Approval.ChannelID = "test-channel"
	cfgVal.Approval.TimeoutSeconds = 5
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSQLite switches the ledger to the SQLite backend.
func WithSQLite() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = "sqlite"
		b.cfg.Ledger.Path = filepath.Join(b.cfg.Paths.DataDir, "publish_queue.db")
	}
}

// WithWatermarks overrides the READY buffer thresholds.
func WithWatermarks(low, target int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Buffer.LowWatermark = low
		b.cfg.Buffer.Target = target
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithAutoChoice makes the auto gateway answer with label.
func WithAutoChoice(label string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Approval.AutoChoice = label
	}
}
