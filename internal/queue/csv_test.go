package queue_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"quizline/internal/queue"
)

func TestDecodeCSVPreservesPassthroughColumns(t *testing.T) {
	input := strings.Join([]string{
		"topic,owner,status,question_count,published_at",
		"Volcanoes,ana,PLANNED,8,",
		"Rivers,bo,published,5,2024-05-01T10:00:00.123456+00:00",
	}, "\n")

	ledger, err := queue.DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if len(ledger.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(ledger.Items))
	}
	if got := ledger.Items[1].Status; got != queue.StatusPublished {
		t.Fatalf("status not normalized: %q", got)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	if ts := ledger.Items[1].PublishedAt; ts == nil || !ts.Equal(want) {
		t.Fatalf("published_at = %v, want %v", ts, want)
	}
	if owner, _ := ledger.Items[0].Field("owner"); owner != "ana" {
		t.Fatalf("owner passthrough lost: %q", owner)
	}

	var buf bytes.Buffer
	if err := queue.EncodeCSV(&buf, ledger); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "topic,owner,status,question_count,published_at" {
		t.Fatalf("column order changed: %q", lines[0])
	}
	if lines[1] != "Volcanoes,ana,PLANNED,8," {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if lines[2] != "Rivers,bo,PUBLISHED,5,2024-05-01T10:00:00.123456Z" {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
}

func TestDecodeCSVKeepsPassthroughWhitespace(t *testing.T) {
	input := "topic, status,notes\n  Volcanoes , PLANNED,  indented note\n"

	ledger, err := queue.DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	item := ledger.Items[0]
	if item.Topic != "Volcanoes" || item.Status != queue.StatusPlanned {
		t.Fatalf("core columns not trimmed: %+v", item)
	}
	if notes, _ := item.Field("notes"); notes != "  indented note" {
		t.Fatalf("notes = %q, want leading spaces kept", notes)
	}

	var buf bytes.Buffer
	if err := queue.EncodeCSV(&buf, ledger); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	if !strings.Contains(buf.String(), `,"  indented note"`) {
		t.Fatalf("rewrite dropped whitespace: %q", buf.String())
	}
}

func TestDecodeCSVEmptyInput(t *testing.T) {
	ledger, err := queue.DecodeCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if len(ledger.Items) != 0 {
		t.Fatalf("expected empty ledger, got %d items", len(ledger.Items))
	}
}

func TestDecodeCSVAddsMissingPublishedAtColumn(t *testing.T) {
	ledger, err := queue.DecodeCSV(strings.NewReader("topic,status\nA,IN_QUEUE\n"))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	var buf bytes.Buffer
	if err := queue.EncodeCSV(&buf, ledger); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "topic,status,published_at\n") {
		t.Fatalf("expected published_at column appended, got %q", buf.String())
	}
}

func TestDecodeCSVRejectsCorruptInput(t *testing.T) {
	cases := map[string]string{
		"missing status column": "topic\nA\n",
		"unknown status":        "topic,status\nA,DRAFT\n",
		"bad timestamp":         "topic,status,published_at\nA,PUBLISHED,yesterday\n",
		"empty topic":           "topic,status\n,PLANNED\n",
		"ragged row":            "topic,status\nA,PLANNED,extra\n",
		"published no stamp":    "topic,status,published_at\nA,PUBLISHED,\n",
		"stamp on planned":      "topic,status,published_at\nA,PLANNED,2024-01-01T00:00:00Z\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := queue.DecodeCSV(strings.NewReader(input)); err == nil {
				t.Fatalf("expected error for %q", input)
			}
		})
	}
}
