package queue

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DecodeCSV parses a ledger. An empty input yields an empty ledger.
func DecodeCSV(r io.Reader) (Ledger, error) {
	br := bufio.NewReader(r)
	// Tolerate the UTF-8 BOM spreadsheet exports prepend.
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	// Passthrough cells keep their whitespace; only core columns are trimmed.
	reader := csv.NewReader(br)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return NewLedger(), nil
	}
	if err != nil {
		return Ledger{}, fmt.Errorf("read header: %w", err)
	}
	for idx := range header {
		header[idx] = strings.TrimSpace(header[idx])
	}
	pos := make(map[string]int, len(header))
	for idx, name := range header {
		if name == "" {
			return Ledger{}, fmt.Errorf("header column %d is empty", idx+1)
		}
		if _, dup := pos[name]; dup {
			return Ledger{}, fmt.Errorf("duplicate header column %q", name)
		}
		pos[name] = idx
	}
	for _, required := range []string{ColumnTopic, ColumnStatus} {
		if _, ok := pos[required]; !ok {
			return Ledger{}, fmt.Errorf("header missing %q column", required)
		}
	}

	ledger := Ledger{Columns: header}
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Ledger{}, fmt.Errorf("read row: %w", err)
		}
		row++
		item, err := decodeRecord(header, record)
		if err != nil {
			return Ledger{}, fmt.Errorf("line %d: %w", row, err)
		}
		ledger.Items = append(ledger.Items, item)
	}
	ledger.normalizeColumns()
	return ledger, nil
}

func decodeRecord(header, record []string) (Item, error) {
	var item Item
	for idx, name := range header {
		value := record[idx]
		switch name {
		case ColumnTopic:
			item.Topic = strings.TrimSpace(value)
		case ColumnStatus:
			status, ok := ParseStatus(value)
			if !ok {
				return Item{}, fmt.Errorf("unknown status %q", value)
			}
			item.Status = status
		case ColumnPublishedAt:
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			ts, err := parseTimestamp(value)
			if err != nil {
				return Item{}, fmt.Errorf("published_at: %w", err)
			}
			item.PublishedAt = &ts
		default:
			item.SetField(name, value)
		}
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// EncodeCSV writes a ledger with its column layout preserved.
func EncodeCSV(w io.Writer, ledger Ledger) error {
	ledger.normalizeColumns()
	writer := csv.NewWriter(w)
	if err := writer.Write(ledger.Columns); err != nil {
		return err
	}
	record := make([]string, len(ledger.Columns))
	for _, item := range ledger.Items {
		for idx, name := range ledger.Columns {
			switch name {
			case ColumnTopic:
				record[idx] = item.Topic
			case ColumnStatus:
				record[idx] = string(item.Status)
			case ColumnPublishedAt:
				record[idx] = formatTimestamp(item.PublishedAt)
			default:
				record[idx] = item.Extra[name]
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp accepts RFC 3339 and the offset-less ISO form older ledgers
// carry. Values without an offset are read as UTC.
func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
