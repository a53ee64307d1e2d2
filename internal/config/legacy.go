package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// legacyOps mirrors the ops.yml layout used by the original scripts.
type legacyOps struct {
	Buffer struct {
		LowWatermark *int `yaml:"low_watermark"`
		Target       *int `yaml:"target"`
	} `yaml:"buffer"`
	Telegram struct {
		ChatID   any    `yaml:"chat_id"`
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`
}

func isLegacyPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	default:
		return false
	}
}

// loadLegacy overlays ops.yml values onto cfg. Ledger location follows the
// original data/publish_queue.csv layout next to the config directory.
func loadLegacy(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	var ops legacyOps
	if err := yaml.Unmarshal(data, &ops); err != nil {
		return fmt.Errorf("parse legacy config: %w", err)
	}
	if ops.Buffer.LowWatermark != nil {
		cfg.Buffer.LowWatermark = *ops.Buffer.LowWatermark
	}
	if ops.Buffer.Target != nil {
		cfg.Buffer.Target = *ops.Buffer.Target
	}
	if ops.Telegram.ChatID != nil {
		cfg.Approval.ChannelID = strings.TrimSpace(fmt.Sprint(ops.Telegram.ChatID))
	}
	if token := strings.TrimSpace(ops.Telegram.BotToken); token != "" {
		cfg.Telegram.BotToken = token
	}
	base := filepath.Dir(filepath.Dir(path))
	cfg.Paths.DataDir = filepath.Join(base, "data")
	return nil
}
