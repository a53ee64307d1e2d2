package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// PublishedAt is the timestamp seeded onto PUBLISHED fixture rows.
var PublishedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// WriteLedgerCSV writes raw CSV lines to path, creating parent directories.
func WriteLedgerCSV(t testing.TB, path string, lines ...string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the file content or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
