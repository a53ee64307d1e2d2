package stage

import (
	"context"
	"log/slog"

	"quizline/internal/buffer"
	"quizline/internal/logging"
)

// BufferCheck compares the READY count with the watermarks and asks the
// operator for a refill when it runs low. The ledger is never written.
func (r *Runner) BufferCheck(ctx context.Context) (Outcome, buffer.Decision, error) {
	var decision buffer.Decision
	out, err := r.run(ctx, NameBufferCheck, func(ctx context.Context, logger *slog.Logger) (Outcome, error) {
		m := &buffer.Monitor{
			Store:     r.Store,
			Gateway:   r.Gateway,
			ChannelID: r.ChannelID,
			Low:       r.Low,
			Target:    r.Target,
			Logger:    logger,
		}
		d, err := m.Run(ctx)
		if err != nil {
			return Outcome{}, err
		}
		decision = d
		if !d.Refill {
			return Outcome{Kind: KindSufficient, Index: -1, Message: d.Message()}, nil
		}
		if r.Notifier != nil {
			if err := r.Notifier.NotifyRefillNeeded(ctx, d.Ready, d.Requested, d.Target); err != nil {
				logger.Debug("refill notification failed", logging.Error(err))
			}
		}
		return Outcome{Kind: KindRefill, Index: -1, Message: d.Message()}, nil
	})
	return out, decision, err
}
