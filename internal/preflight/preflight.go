package preflight

import (
	"context"
	"strings"

	"quizline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckLedger(ctx, cfg),
	}

	switch strings.ToLower(cfg.Approval.Backend) {
	case "telegram":
		results = append(results, CheckTelegram(ctx, cfg.Telegram))
	case "console":
		results = append(results, CheckInteractive())
	case "auto":
		results = append(results, Result{Name: "Approval", Passed: true, Detail: "auto backend answers without a human"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		results = append(results, Result{Name: "Notifications", Passed: true, Detail: "Disabled"})
	} else {
		results = append(results, Result{Name: "Notifications", Passed: true, Detail: cfg.Notifications.NtfyTopic})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
