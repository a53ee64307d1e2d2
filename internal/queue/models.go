package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status represents the lifecycle of a ledger item.
type Status string

const (
	StatusPlanned       Status = "PLANNED"
	StatusApprovedTopic Status = "APPROVED_TOPIC"
	StatusReady         Status = "READY"
	StatusInQueue       Status = "IN_QUEUE"
	StatusPublished     Status = "PUBLISHED"
)

var allStatuses = []Status{
	StatusPlanned,
	StatusApprovedTopic,
	StatusReady,
	StatusInQueue,
	StatusPublished,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every lifecycle status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes a ledger cell into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Core ledger column names.
const (
	ColumnTopic       = "topic"
	ColumnStatus      = "status"
	ColumnPublishedAt = "published_at"
)

var coreColumns = []string{ColumnTopic, ColumnStatus, ColumnPublishedAt}

func isCoreColumn(name string) bool {
	for _, c := range coreColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Item is one ledger row. Extra holds passthrough columns the core does not
// interpret.
type Item struct {
	Topic       string
	Status      Status
	PublishedAt *time.Time
	Extra       map[string]string
}

// Field returns a passthrough column value.
func (i Item) Field(name string) (string, bool) {
	if i.Extra == nil {
		return "", false
	}
	v, ok := i.Extra[name]
	return v, ok
}

// SetField stores a passthrough column value.
func (i *Item) SetField(name, value string) {
	if i.Extra == nil {
		i.Extra = make(map[string]string)
	}
	i.Extra[name] = value
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.PublishedAt != nil {
		ts := *i.PublishedAt
		out.PublishedAt = &ts
	}
	if i.Extra != nil {
		out.Extra = make(map[string]string, len(i.Extra))
		for k, v := range i.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Validate checks the per-item invariants.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Topic) == "" {
		return fmt.Errorf("topic is empty")
	}
	if _, ok := statusSet[i.Status]; !ok {
		return fmt.Errorf("unknown status %q", i.Status)
	}
	if i.Status == StatusPublished && i.PublishedAt == nil {
		return fmt.Errorf("published item %q has no published_at", i.Topic)
	}
	if i.Status != StatusPublished && i.PublishedAt != nil {
		return fmt.Errorf("item %q has published_at but status %s", i.Topic, i.Status)
	}
	return nil
}

func (i Item) equal(other Item) bool {
	if i.Topic != other.Topic || i.Status != other.Status {
		return false
	}
	switch {
	case i.PublishedAt == nil && other.PublishedAt != nil,
		i.PublishedAt != nil && other.PublishedAt == nil:
		return false
	case i.PublishedAt != nil && !i.PublishedAt.Equal(*other.PublishedAt):
		return false
	}
	return extrasEqual(i.Extra, other.Extra)
}

func extrasEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// NewItem returns a PLANNED item for topic.
func NewItem(topic string) Item {
	return Item{Topic: strings.TrimSpace(topic), Status: StatusPlanned}
}

// Ledger is the ordered item list plus the column layout used to persist it.
type Ledger struct {
	Columns []string
	Items   []Item
}

// NewLedger returns an empty ledger with the core columns.
func NewLedger() Ledger {
	return Ledger{Columns: append([]string(nil), coreColumns...)}
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := Ledger{Columns: append([]string(nil), l.Columns...)}
	if l.Items != nil {
		out.Items = make([]Item, len(l.Items))
		for idx, item := range l.Items {
			out.Items[idx] = item.Clone()
		}
	}
	return out
}

// FirstIndex returns the ledger position of the first item with status, or
// -1 when there is none.
func (l Ledger) FirstIndex(status Status) int {
	for idx, item := range l.Items {
		if item.Status == status {
			return idx
		}
	}
	return -1
}

// Indices returns every position holding status, in ledger order.
func (l Ledger) Indices(status Status) []int {
	var out []int
	for idx, item := range l.Items {
		if item.Status == status {
			out = append(out, idx)
		}
	}
	return out
}

// Count returns how many items hold status.
func (l Ledger) Count(status Status) int {
	n := 0
	for _, item := range l.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Counts returns item counts keyed by status. Every status is present.
func (l Ledger) Counts() map[Status]int {
	out := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		out[status] = 0
	}
	for _, item := range l.Items {
		out[item.Status]++
	}
	return out
}

// Validate checks every item.
func (l Ledger) Validate() error {
	for idx, item := range l.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("row %d: %w", idx+1, err)
		}
	}
	return nil
}

// normalizeColumns makes sure the core columns are present and that every
// passthrough field carried by an item has a column. Unknown fields are
// appended in sorted order so encodes are deterministic.
func (l *Ledger) normalizeColumns() {
	seen := make(map[string]struct{}, len(l.Columns))
	cols := make([]string, 0, len(l.Columns)+len(coreColumns))
	for _, c := range l.Columns {
		if _, dup := seen[c]; dup || c == "" {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
	}
	for _, c := range coreColumns {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	var extra []string
	for _, item := range l.Items {
		for k := range item.Extra {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	l.Columns = append(cols, extra...)
}

// PassthroughColumns lists non-core columns in ledger order.
func (l Ledger) PassthroughColumns() []string {
	var out []string
	for _, c := range l.Columns {
		if !isCoreColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// VerifyRewrite checks that after is a legal successor of before: every item
// kept in order with its topic and passthrough fields, at most one status
// changed and that change follows a legal edge.
func VerifyRewrite(before, after Ledger) error {
	if len(before.Items) != len(after.Items) {
		return fmt.Errorf("%w: item count changed from %d to %d", ErrInvalidRewrite, len(before.Items), len(after.Items))
	}
	changed := -1
	for idx := range before.Items {
		prev, next := before.Items[idx], after.Items[idx]
		if prev.Topic != next.Topic {
			return fmt.Errorf("%w: row %d topic changed", ErrInvalidRewrite, idx+1)
		}
		if !extrasEqual(prev.Extra, next.Extra) {
			return fmt.Errorf("%w: row %d passthrough fields changed", ErrInvalidRewrite, idx+1)
		}
		if prev.Status == next.Status {
			if !prev.equal(next) {
				return fmt.Errorf("%w: row %d changed without a status change", ErrInvalidRewrite, idx+1)
			}
			continue
		}
		if changed >= 0 {
			return fmt.Errorf("%w: rows %d and %d both changed status", ErrInvalidRewrite, changed+1, idx+1)
		}
		changed = idx
		if !CanTransition(prev.Status, next.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, prev.Status, next.Status)
		}
		if err := next.Validate(); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrInvalidRewrite, idx+1, err)
		}
	}
	return nil
}
