package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quizline/internal/approval"
	"quizline/internal/config"
	"quizline/internal/logging"
	"quizline/internal/notifications"
	"quizline/internal/queue"
	"quizline/internal/services"
)

// Runner executes stage invocations. The zero value is not usable; build one
// with NewRunner or fill every collaborator.
type Runner struct {
	Store     queue.Store
	Gateway   approval.Gateway
	Notifier  notifications.Service
	Uploader  Uploader
	ChannelID string
	Low       int
	Target    int
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewRunner wires a runner from configuration.
func NewRunner(cfg *config.Config, store queue.Store, gateway approval.Gateway, notifier notifications.Service, logger *slog.Logger) *Runner {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Runner{
		Store:     store,
		Gateway:   gateway,
		Notifier:  notifier,
		Uploader:  NewSimulatedUploader(logger),
		ChannelID: cfg.Approval.ChannelID,
		Low:       cfg.Buffer.LowWatermark,
		Target:    cfg.Buffer.Target,
		Now:       time.Now,
		Logger:    logger,
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// run wraps one invocation with start/outcome logging and failure alerts.
func (r *Runner) run(ctx context.Context, name string, fn func(context.Context, *slog.Logger) (Outcome, error)) (Outcome, error) {
	ctx = services.WithStage(ctx, name)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.Logger, "stage"))

	started := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	outcome, err := fn(ctx, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.Error(err),
		)
		if r.Notifier != nil {
			if notifyErr := r.Notifier.NotifyError(ctx, err, name); notifyErr != nil {
				logger.Debug("stage error notification failed", logging.Error(notifyErr))
			}
		}
		return Outcome{Stage: name, Index: -1}, fmt.Errorf("%s: %w", name, err)
	}

	outcome.Stage = name
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_outcome"),
		logging.String("outcome", string(outcome.Kind)),
		logging.Duration("elapsed", time.Since(started)),
	}
	if outcome.Topic != "" {
		attrs = append(attrs, logging.String(logging.FieldTopic, outcome.Topic), logging.Int(logging.FieldItemIndex, outcome.Index))
	}
	logger.Info(outcome.String(), logging.Args(attrs...)...)
	return outcome, nil
}
