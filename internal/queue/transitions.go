package queue

import (
	"fmt"
	"strings"
	"time"
)

// Guard names what must hold before an edge commits.
type Guard string

const (
	GuardNone     Guard = "none"
	GuardApproval Guard = "approval"
	GuardExternal Guard = "external"
)

// RejectPolicy decides how a scan continues after an approval is declined.
type RejectPolicy string

const (
	// RejectAdvance skips the declined item and offers the next candidate.
	RejectAdvance RejectPolicy = "advance"
	// RejectHold stops the scan and leaves every candidate untouched.
	RejectHold RejectPolicy = "hold"
	// RejectNone applies to edges without an approval guard.
	RejectNone RejectPolicy = ""
)

// Edge is one legal status transition.
type Edge struct {
	Name     string
	Stage    string
	From     Status
	To       Status
	Guard    Guard
	OnReject RejectPolicy
	// Options are the labels offered to the approver, accepting option first.
	Options []string
	accepts func(label string) bool
}

// Approve reports whether the approver's label accepts the transition.
// Edges without an approval guard accept every label.
func (e Edge) Approve(label string) bool {
	if e.accepts == nil {
		return true
	}
	return e.accepts(strings.TrimSpace(label))
}

// Apply moves item along the edge. PublishedAt is stamped in UTC only when
// the edge lands on PUBLISHED.
func (e Edge) Apply(item *Item, now time.Time) error {
	if item.Status != e.From {
		return fmt.Errorf("%w: %s expects %s, item %q is %s", ErrIllegalTransition, e.Name, e.From, item.Topic, item.Status)
	}
	item.Status = e.To
	if e.To == StatusPublished {
		ts := now.UTC()
		item.PublishedAt = &ts
	}
	return nil
}

var (
	EdgePropose = Edge{
		Name:     "propose",
		Stage:    "propose-topic",
		From:     StatusPlanned,
		To:       StatusApprovedTopic,
		Guard:    GuardApproval,
		OnReject: RejectAdvance,
		Options:  []string{"Yes", "No"},
		accepts: func(label string) bool {
			return strings.EqualFold(label, "yes")
		},
	}
	EdgeMarkReady = Edge{
		Name:  "mark-ready",
		Stage: "mark-ready",
		From:  StatusApprovedTopic,
		To:    StatusReady,
		Guard: GuardExternal,
	}
	EdgeEnqueue = Edge{
		Name:     "enqueue",
		Stage:    "queue-approval",
		From:     StatusReady,
		To:       StatusInQueue,
		Guard:    GuardApproval,
		OnReject: RejectHold,
		Options:  []string{"Add to Queue", "Hold"},
		accepts: func(label string) bool {
			return strings.HasPrefix(strings.ToLower(label), "add")
		},
	}
	EdgePublish = Edge{
		Name:  "publish",
		Stage: "upload-schedule",
		From:  StatusInQueue,
		To:    StatusPublished,
		Guard: GuardNone,
	}
)

var edges = []Edge{EdgePropose, EdgeMarkReady, EdgeEnqueue, EdgePublish}

// Edges returns the transition table in pipeline order.
func Edges() []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	_, ok := EdgeBetween(from, to)
	return ok
}

// EdgeBetween returns the edge from -> to.
func EdgeBetween(from, to Status) (Edge, bool) {
	for _, e := range edges {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}
