// Package buffer decides when the READY buffer needs refilling.
package buffer

import (
	"context"
	"fmt"
	"log/slog"

	"quizline/internal/approval"
	"quizline/internal/logging"
	"quizline/internal/queue"
)

// Decision is the outcome of a buffer check.
type Decision struct {
	Ready        int
	LowWatermark int
	Target       int
	// Refill is true when Ready is below LowWatermark.
	Refill bool
	// Requested is how many topics to generate. Never negative.
	Requested int
	// Misconfigured is set when Target is below the READY count on a refill,
	// which would have requested a negative amount.
	Misconfigured bool
}

// Check counts READY items and compares them with the watermarks.
func Check(ledger queue.Ledger, low, target int) Decision {
	ready := ledger.Count(queue.StatusReady)
	d := Decision{Ready: ready, LowWatermark: low, Target: target}
	if ready >= low {
		return d
	}
	d.Refill = true
	d.Requested = target - ready
	if d.Requested < 0 {
		d.Requested = 0
		d.Misconfigured = true
	}
	return d
}

// Message renders the operator prompt for a refill decision.
func (d Decision) Message() string {
	if !d.Refill {
		return fmt.Sprintf("Buffer sufficient (%d READY items ≥ %d).", d.Ready, d.LowWatermark)
	}
	return fmt.Sprintf("Only %d READY items left. Should I start generating %d more to reach the target of %d?",
		d.Ready, d.Requested, d.Target)
}

// Monitor runs buffer checks against a store and reports refills through a
// gateway.
type Monitor struct {
	Store     queue.Store
	Gateway   approval.Gateway
	ChannelID string
	Low       int
	Target    int
	Logger    *slog.Logger
}

// Run loads a snapshot, checks it and sends exactly one notice when a refill
// is needed. The ledger is never written.
func (m *Monitor) Run(ctx context.Context) (Decision, error) {
	logger := logging.NewComponentLogger(m.Logger, "buffer")
	ledger, err := m.Store.LoadAll(ctx)
	if err != nil {
		return Decision{}, err
	}
	d := Check(ledger, m.Low, m.Target)
	if d.Misconfigured {
		logging.WarnWithContext(logger, "buffer target below READY count", "buffer_misconfigured",
			logging.Int("ready", d.Ready),
			logging.Int("low_watermark", d.LowWatermark),
			logging.Int("target", d.Target),
			logging.String(logging.FieldErrorHint, "set buffer.target at or above buffer.low_watermark"),
			logging.String(logging.FieldImpact, "refill requested with zero items"),
		)
	}
	if !d.Refill {
		logger.Info("buffer sufficient", logging.Int("ready", d.Ready), logging.Int("low_watermark", d.LowWatermark))
		return d, nil
	}
	if err := m.Gateway.Notify(ctx, m.ChannelID, d.Message()); err != nil {
		return d, fmt.Errorf("send refill request: %w", err)
	}
	logger.Info("refill requested",
		logging.Int("ready", d.Ready),
		logging.Int("requested", d.Requested),
		logging.Int("target", d.Target),
	)
	return d, nil
}
