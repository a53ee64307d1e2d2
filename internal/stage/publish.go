package stage

import (
	"context"
	"log/slog"
	"time"

	"quizline/internal/logging"
	"quizline/internal/queue"
	"quizline/internal/services"
)

// Uploader hands a queued item to the video platform.
type Uploader interface {
	Upload(ctx context.Context, item queue.Item) error
}

// SimulatedUploader logs the upload instead of performing one.
type SimulatedUploader struct {
	logger *slog.Logger
}

// NewSimulatedUploader returns the default uploader.
func NewSimulatedUploader(logger *slog.Logger) *SimulatedUploader {
	return &SimulatedUploader{logger: logging.NewComponentLogger(logger, "uploader")}
}

func (u *SimulatedUploader) Upload(ctx context.Context, item queue.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.logger.Info("simulated upload", logging.String(logging.FieldTopic, item.Topic))
	return nil
}

// Publish uploads the first IN_QUEUE item and marks it PUBLISHED with the
// current UTC time. The upload runs inside Store.Mutate so the row is claimed
// under the writer lock; an overlapping run waits and then finds nothing.
func (r *Runner) Publish(ctx context.Context) (Outcome, error) {
	return r.run(ctx, NameUploadSchedule, func(ctx context.Context, logger *slog.Logger) (Outcome, error) {
		edge := queue.EdgePublish
		var (
			item        queue.Item
			idx         = -1
			uploadedIdx = -1
			publishedAt time.Time
		)
		err := r.Store.Mutate(ctx, func(ledger *queue.Ledger) (bool, error) {
			idx = ledger.FirstIndex(edge.From)
			if idx < 0 {
				return false, nil
			}
			item = ledger.Items[idx]
			// Mutate may rerun fn after a busy retry; upload a row once.
			if r.Uploader != nil && uploadedIdx != idx {
				itemCtx := services.WithTopic(services.WithItemIndex(ctx, idx), item.Topic)
				if err := r.Uploader.Upload(itemCtx, item); err != nil {
					return false, services.Wrap(services.ErrExternal, NameUploadSchedule, "upload", item.Topic, err)
				}
				uploadedIdx = idx
			}
			before := ledger.Clone()
			row := &ledger.Items[idx]
			if err := edge.Apply(row, r.now()); err != nil {
				return false, err
			}
			if err := queue.VerifyRewrite(before, *ledger); err != nil {
				return false, err
			}
			publishedAt = *row.PublishedAt
			return true, nil
		})
		if err != nil {
			return Outcome{}, err
		}
		if idx < 0 {
			return nothing(edge.Stage, edge.From), nil
		}
		ctx = services.WithTopic(services.WithItemIndex(ctx, idx), item.Topic)
		if r.Notifier != nil {
			if err := r.Notifier.NotifyPublished(ctx, item.Topic, publishedAt); err != nil {
				logging.WithContext(ctx, logger).Debug("publish notification failed", logging.Error(err))
			}
		}
		return Outcome{
			Kind:    KindAdvanced,
			Topic:   item.Topic,
			Index:   idx,
			From:    edge.From,
			To:      edge.To,
			Message: "published_at " + publishedAt.Format(time.RFC3339),
		}, nil
	})
}
