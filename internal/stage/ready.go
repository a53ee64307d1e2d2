package stage

import (
	"context"
	"log/slog"
	"strings"

	"quizline/internal/queue"
)

// MarkReady records the external "content generated" event: the first
// APPROVED_TOPIC item, or the first one whose topic matches, becomes READY.
// The whole step runs under the ledger's single-writer guarantee.
func (r *Runner) MarkReady(ctx context.Context, topic string) (Outcome, error) {
	return r.run(ctx, NameMarkReady, func(ctx context.Context, _ *slog.Logger) (Outcome, error) {
		edge := queue.EdgeMarkReady
		topic = strings.TrimSpace(topic)
		out := nothing(edge.Stage, edge.From)
		if topic != "" {
			out.Message = "no " + string(edge.From) + " item named " + topic
		}
		err := r.Store.Mutate(ctx, func(ledger *queue.Ledger) (bool, error) {
			for idx := range ledger.Items {
				item := &ledger.Items[idx]
				if item.Status != edge.From {
					continue
				}
				if topic != "" && !strings.EqualFold(item.Topic, topic) {
					continue
				}
				before := ledger.Clone()
				if err := edge.Apply(item, r.now()); err != nil {
					return false, err
				}
				if err := queue.VerifyRewrite(before, *ledger); err != nil {
					return false, err
				}
				out = Outcome{Kind: KindAdvanced, Topic: item.Topic, Index: idx, From: edge.From, To: edge.To}
				return true, nil
			}
			return false, nil
		})
		if err != nil {
			return Outcome{}, err
		}
		return out, nil
	})
}
