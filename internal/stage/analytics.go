package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"quizline/internal/queue"
)

// Published is one PUBLISHED ledger row.
type Published struct {
	Topic       string
	PublishedAt time.Time
}

// Summary is the analytics view of the ledger.
type Summary struct {
	Since     time.Time
	Published []Published
	Counts    map[queue.Status]int
}

// Text renders the summary the way operators read it in logs.
func (s Summary) Text() string {
	if len(s.Published) == 0 {
		return "No published videos to analyze."
	}
	var b strings.Builder
	b.WriteString("Published videos:")
	for _, p := range s.Published {
		fmt.Fprintf(&b, "\n- %s (published at %s)", p.Topic, p.PublishedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// Analytics lists PUBLISHED items, oldest first. A non-zero since keeps only
// items published at or after it.
func (r *Runner) Analytics(ctx context.Context, since time.Time) (Outcome, Summary, error) {
	var summary Summary
	out, err := r.run(ctx, NameAnalytics, func(ctx context.Context, _ *slog.Logger) (Outcome, error) {
		ledger, err := r.Store.LoadAll(ctx)
		if err != nil {
			return Outcome{}, err
		}
		summary = Summarize(ledger, since)
		msg := fmt.Sprintf("%d published", len(summary.Published))
		if len(summary.Published) == 0 {
			msg = "No published videos to analyze."
		}
		return Outcome{Kind: KindSummary, Index: -1, Message: msg}, nil
	})
	return out, summary, err
}

// Summarize builds the analytics view from a ledger snapshot.
func Summarize(ledger queue.Ledger, since time.Time) Summary {
	s := Summary{Since: since, Counts: ledger.Counts()}
	for _, item := range ledger.Items {
		if item.Status != queue.StatusPublished || item.PublishedAt == nil {
			continue
		}
		if !since.IsZero() && item.PublishedAt.Before(since) {
			continue
		}
		s.Published = append(s.Published, Published{Topic: item.Topic, PublishedAt: item.PublishedAt.UTC()})
	}
	sort.SliceStable(s.Published, func(i, j int) bool {
		return s.Published[i].PublishedAt.Before(s.Published[j].PublishedAt)
	})
	return s
}

// EstimateRuntime is the preview length of a quiz video: seven seconds per
// question plus a two second outro.
func EstimateRuntime(questions int) time.Duration {
	if questions < 0 {
		questions = 0
	}
	return time.Duration(questions*7+2) * time.Second
}
