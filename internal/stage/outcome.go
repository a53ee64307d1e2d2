package stage

import (
	"fmt"
	"strings"

	"quizline/internal/queue"
)

// Stage names used in logs, outcomes and the CLI.
const (
	NameProposeTopic   = "propose-topic"
	NameQueueApproval  = "queue-approval"
	NameUploadSchedule = "upload-schedule"
	NameMarkReady      = "mark-ready"
	NameBufferCheck    = "buffer-check"
	NameAnalytics      = "analytics-summary"
)

// Kind classifies how an invocation ended.
type Kind string

const (
	KindAdvanced   Kind = "advanced"
	KindNothing    Kind = "nothing"
	KindRejected   Kind = "rejected"
	KindRefill     Kind = "refill"
	KindSufficient Kind = "sufficient"
	KindSummary    Kind = "summary"
)

// Outcome is the result of one stage invocation.
type Outcome struct {
	Stage string
	Kind  Kind
	Topic string
	// Index is the ledger row acted on, or -1.
	Index int
	From  queue.Status
	To    queue.Status
	// Declined lists topics the approver turned down during this run.
	Declined []string
	Message  string
}

func nothing(stage string, status queue.Status) Outcome {
	return Outcome{
		Stage:   stage,
		Kind:    KindNothing,
		Index:   -1,
		From:    status,
		Message: fmt.Sprintf("no %s items", status),
	}
}

// String renders the one-line operator summary.
func (o Outcome) String() string {
	var b strings.Builder
	b.WriteString(o.Stage)
	b.WriteString(": ")
	switch o.Kind {
	case KindAdvanced:
		fmt.Fprintf(&b, "advanced %q (row %d) %s -> %s", o.Topic, o.Index+1, o.From, o.To)
		if len(o.Declined) > 0 {
			fmt.Fprintf(&b, " after declining %d", len(o.Declined))
		}
	case KindNothing:
		b.WriteString("nothing eligible")
	case KindRejected:
		if o.Topic != "" {
			fmt.Fprintf(&b, "declined %q (row %d), left %s", o.Topic, o.Index+1, o.From)
		} else {
			fmt.Fprintf(&b, "declined %d candidates", len(o.Declined))
		}
	default:
		b.WriteString(string(o.Kind))
	}
	if o.Message != "" {
		b.WriteString(" (")
		b.WriteString(o.Message)
		b.WriteString(")")
	}
	return b.String()
}
