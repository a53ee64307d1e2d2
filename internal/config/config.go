package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Ledger contains configuration for the publish queue ledger.
type Ledger struct {
	// Backend selects the storage engine: "csv" or "sqlite".
	Backend            string `toml:"backend"`
	Path               string `toml:"path"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Buffer contains the READY-buffer watermarks.
type Buffer struct {
	LowWatermark int `toml:"low_watermark"`
	Target       int `toml:"target"`
}

// Approval contains configuration for the human approval channel.
type Approval struct {
	// Backend selects the gateway: "telegram", "console", or "auto".
	Backend        string `toml:"backend"`
	ChannelID      string `toml:"channel_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// AutoChoice is the label the auto gateway answers with. Empty picks the first option.
	AutoChoice string `toml:"auto_choice"`
}

// Telegram contains Telegram Bot API settings.
type Telegram struct {
	BotToken           string `toml:"bot_token"`
	APIBaseURL         string `toml:"api_base_url"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	Refill         bool   `toml:"refill"`
	Published      bool   `toml:"published"`
}

// Schedule contains stage intervals used by the quizlined scheduler.
// An interval of zero disables the stage.
type Schedule struct {
	ProposeSeconds     int  `toml:"propose_seconds"`
	EnqueueSeconds     int  `toml:"enqueue_seconds"`
	PublishSeconds     int  `toml:"publish_seconds"`
	BufferCheckSeconds int  `toml:"buffer_check_seconds"`
	AnalyticsSeconds   int  `toml:"analytics_seconds"`
	WatchLedger        bool `toml:"watch_ledger"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for quizline.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Ledger: publish queue storage backend and lock timeout
//   - Buffer: READY watermarks used by the buffer check
//   - Approval: human approval gateway and its timeout
//   - Telegram: bot credentials for the telegram gateway
//   - Notifications: ntfy push notification settings
//   - Schedule: stage intervals for the scheduler daemon
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ledger        Ledger        `toml:"ledger"`
	Buffer        Buffer        `toml:"buffer"`
	Approval      Approval      `toml:"approval"`
	Telegram      Telegram      `toml:"telegram"`
	Notifications Notifications `toml:"notifications"`
	Schedule      Schedule      `toml:"schedule"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/quizline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if isLegacyPath(resolvedPath) {
			if err := loadLegacy(resolvedPath, &cfg); err != nil {
				return nil, "", false, err
			}
		} else {
			file, err := os.Open(resolvedPath)
			if err != nil {
				return nil, "", false, fmt.Errorf("open config: %w", err)
			}
			defer file.Close()

			decoder := toml.NewDecoder(file)
			if err := decoder.Decode(&cfg); err != nil {
				return nil, "", false, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("quizline.toml")
	if err != nil {
		return "", false, err
	}
	legacyPath, err := filepath.Abs(filepath.Join("config", "ops.yml"))
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath, legacyPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories plus the ledger's parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Ledger.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ApprovalTimeout returns the bounded wait applied to approval requests.
func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.Approval.TimeoutSeconds) * time.Second
}

// LedgerLockTimeout returns how long a stage waits for the ledger lock.
func (c *Config) LedgerLockTimeout() time.Duration {
	return time.Duration(c.Ledger.LockTimeoutSeconds) * time.Second
}

// DaemonLockPath returns the single-instance lock file used by quizlined.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.LogDir, "quizlined.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
