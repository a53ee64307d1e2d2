package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quizline/internal/config"
	"quizline/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteLedgerCSV(t, cfg.Ledger.Path, "topic,status", "A,PLANNED", "B,READY")
	result := CheckLedger(context.Background(), cfg)
	if !result.Passed || !strings.Contains(result.Detail, "2 items") {
		t.Fatalf("unexpected result %+v", result)
	}

	testsupport.WriteLedgerCSV(t, cfg.Ledger.Path, "topic,status", "A,UNKNOWN")
	if result := CheckLedger(context.Background(), cfg); result.Passed {
		t.Fatalf("expected corrupt ledger to fail, got %+v", result)
	}
}

func TestCheckTelegram(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/botgood/getMe") {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"username":"quiz_bot"}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	ok := CheckTelegram(context.Background(), config.Telegram{BotToken: "good", APIBaseURL: srv.URL})
	if !ok.Passed || ok.Detail != "@quiz_bot" {
		t.Fatalf("unexpected result %+v", ok)
	}
	bad := CheckTelegram(context.Background(), config.Telegram{BotToken: "bad", APIBaseURL: srv.URL})
	if bad.Passed || !strings.Contains(bad.Detail, "invalid bot token") {
		t.Fatalf("unexpected result %+v", bad)
	}
	missing := CheckTelegram(context.Background(), config.Telegram{})
	if missing.Passed {
		t.Fatal("expected missing token to fail")
	}
}

func TestRunAllWithAutoBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
}
