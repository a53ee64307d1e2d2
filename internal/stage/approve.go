package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"quizline/internal/logging"
	"quizline/internal/queue"
	"quizline/internal/services"
)

// QuestionCountField is the passthrough column the content generator fills
// with the number of quiz questions in a READY item.
const QuestionCountField = "question_count"

// Propose offers PLANNED topics in ledger order until one is approved.
// A declined topic stays PLANNED and the next candidate is offered.
func (r *Runner) Propose(ctx context.Context) (Outcome, error) {
	return r.run(ctx, NameProposeTopic, func(ctx context.Context, logger *slog.Logger) (Outcome, error) {
		return r.approveFirst(ctx, logger, queue.EdgePropose, ProposePrompt)
	})
}

// Enqueue asks to move the first READY item into the publish queue. A
// decline stops the run and leaves every READY item untouched.
func (r *Runner) Enqueue(ctx context.Context) (Outcome, error) {
	return r.run(ctx, NameQueueApproval, func(ctx context.Context, logger *slog.Logger) (Outcome, error) {
		return r.approveFirst(ctx, logger, queue.EdgeEnqueue, EnqueuePrompt)
	})
}

// ProposePrompt is the approval text for a PLANNED topic.
func ProposePrompt(item queue.Item) string {
	return fmt.Sprintf("Proposed topic: %s. Approve?", item.Topic)
}

// EnqueuePrompt is the approval text for a READY item. Items that carry a
// question count include the runtime estimate.
func EnqueuePrompt(item queue.Item) string {
	prompt := fmt.Sprintf("Approve adding '%s' to the queue?", item.Topic)
	if raw, ok := item.Field(QuestionCountField); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			prompt += fmt.Sprintf(" Preview: %d questions, runtime ≈ %ds.", n, int(EstimateRuntime(n).Seconds()))
		}
	}
	return prompt
}

func (r *Runner) approveFirst(ctx context.Context, logger *slog.Logger, edge queue.Edge, prompt func(queue.Item) string) (Outcome, error) {
	ledger, err := r.Store.LoadAll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	candidates := ledger.Indices(edge.From)
	if len(candidates) == 0 {
		return nothing(edge.Stage, edge.From), nil
	}

	var declined []string
	for _, idx := range candidates {
		item := ledger.Items[idx]
		itemCtx := services.WithTopic(services.WithItemIndex(ctx, idx), item.Topic)
		itemLogger := logging.WithContext(itemCtx, logger)

		label, err := r.Gateway.Request(itemCtx, r.ChannelID, prompt(item), edge.Options)
		if err != nil {
			return Outcome{}, fmt.Errorf("approval for %q: %w", item.Topic, err)
		}
		if !edge.Approve(label) {
			itemLogger.Info("approval declined", logging.Args(logging.DecisionAttrs(edge.Name, "declined", label)...)...)
			declined = append(declined, item.Topic)
			if edge.OnReject == queue.RejectHold {
				return Outcome{
					Kind:     KindRejected,
					Topic:    item.Topic,
					Index:    idx,
					From:     edge.From,
					Declined: declined,
				}, nil
			}
			continue
		}
		itemLogger.Info("approval granted", logging.Args(logging.DecisionAttrs(edge.Name, "approved", label)...)...)

		if err := r.commit(itemCtx, edge, idx, item.Topic); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:     KindAdvanced,
			Topic:    item.Topic,
			Index:    idx,
			From:     edge.From,
			To:       edge.To,
			Declined: declined,
		}, nil
	}
	return Outcome{
		Kind:     KindRejected,
		Index:    -1,
		From:     edge.From,
		Declined: declined,
		Message:  fmt.Sprintf("all %d %s candidates declined", len(declined), edge.From),
	}, nil
}

// commit applies edge to the row at idx only when it still holds the
// snapshot's status and topic.
func (r *Runner) commit(ctx context.Context, edge queue.Edge, idx int, topic string) error {
	return r.Store.UpdateItem(ctx, idx, edge.From, func(item *queue.Item) error {
		if item.Topic != topic {
			return fmt.Errorf("%w: row %d now holds %q, expected %q", queue.ErrConflict, idx+1, item.Topic, topic)
		}
		return edge.Apply(item, r.now())
	})
}
