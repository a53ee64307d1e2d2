package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quizline/internal/approval"
	"quizline/internal/queue"
	"quizline/internal/services"
	"quizline/internal/testsupport"
)

type cliEnv struct {
	configPath string
	ledgerPath string
}

func setupCLIEnv(t *testing.T, autoChoice string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	logDir := filepath.Join(base, "logs")
	ledgerPath := filepath.Join(dataDir, "publish_queue.csv")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[ledger]
backend = "csv"
path = %q
lock_timeout_seconds = 2

[buffer]
low_watermark = 2
target = 5

[approval]
backend = "auto"
channel_id = "cli-test"
timeout_seconds = 5
auto_choice = %q

[logging]
format = "console"
level = "error"
`, dataDir, logDir, ledgerPath, autoChoice)
	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{configPath: configPath, ledgerPath: ledgerPath}
}

func (e *cliEnv) seed(t *testing.T, lines ...string) {
	t.Helper()
	testsupport.WriteLedgerCSV(t, e.ledgerPath, append([]string{"topic,status,published_at"}, lines...)...)
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestProposeCommandAdvancesFirstPlanned(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "Volcanoes,PLANNED,", "Rivers,PLANNED,")

	stdout, _, err := env.run(t, "propose")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	requireContains(t, stdout, `advanced "Volcanoes" (row 1) PLANNED -> APPROVED_TOPIC`)
	ledger := testsupport.ReadFile(t, env.ledgerPath)
	requireContains(t, ledger, "Volcanoes,APPROVED_TOPIC")
	requireContains(t, ledger, "Rivers,PLANNED")
}

func TestEnqueueCommandHoldsOnRejection(t *testing.T) {
	env := setupCLIEnv(t, "Hold")
	env.seed(t, "Deserts,READY,")

	stdout, _, err := env.run(t, "enqueue")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, stdout, "declined")
	requireContains(t, testsupport.ReadFile(t, env.ledgerPath), "Deserts,READY")
}

func TestPublishCommandNothingEligible(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "Deserts,READY,")

	stdout, _, err := env.run(t, "publish")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	requireContains(t, stdout, "upload-schedule: nothing eligible")
}

func TestMarkReadyCommandByTopic(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "Oceans,APPROVED_TOPIC,", "Glaciers,APPROVED_TOPIC,")

	stdout, _, err := env.run(t, "mark-ready", "glaciers")
	if err != nil {
		t.Fatalf("mark-ready: %v", err)
	}
	requireContains(t, stdout, `advanced "Glaciers" (row 2)`)
	ledger := testsupport.ReadFile(t, env.ledgerPath)
	requireContains(t, ledger, "Oceans,APPROVED_TOPIC")
	requireContains(t, ledger, "Glaciers,READY")
}

func TestBufferCheckCommandJSON(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "A,READY,")

	stdout, _, err := env.run(t, "buffer-check", "--json")
	if err != nil {
		t.Fatalf("buffer-check: %v", err)
	}
	var decision struct {
		Ready     int
		Refill    bool
		Requested int
	}
	if err := json.Unmarshal([]byte(stdout), &decision); err != nil {
		t.Fatalf("decode decision: %v\n%s", err, stdout)
	}
	if decision.Ready != 1 || !decision.Refill || decision.Requested != 4 {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestQueueAddWarnsOnSimilarTopic(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "Volcanoes of the World,PLANNED,")

	stdout, stderr, err := env.run(t, "queue", "add", "volcanoes of the world!", "--field", "question_count=12")
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, stdout, `Added "volcanoes of the world!" as row 2`)
	requireContains(t, stderr, "resembles existing topic")

	ledger := testsupport.ReadFile(t, env.ledgerPath)
	requireContains(t, ledger, "question_count")
	requireContains(t, ledger, "volcanoes of the world!,PLANNED")
}

func TestQueueAddRejectsCoreField(t *testing.T) {
	env := setupCLIEnv(t, "")
	if _, _, err := env.run(t, "queue", "add", "Topic", "--field", "status=READY"); err == nil {
		t.Fatal("expected error for core column override")
	}
}

func TestQueueListJSONFiltersStatus(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "A,PLANNED,", "B,PUBLISHED,2024-05-01T12:00:00Z", "C,PLANNED,")

	stdout, _, err := env.run(t, "queue", "list", "--status", "planned", "--json")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var items []itemView
	if err := json.Unmarshal([]byte(stdout), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 2 || items[0].Row != 1 || items[1].Row != 3 {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestQueueImportAppendsRows(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "A,PLANNED,")
	importPath := filepath.Join(t.TempDir(), "more.csv")
	testsupport.WriteLedgerCSV(t, importPath, "topic,status,difficulty", "B,PLANNED,hard", "C,READY,easy")

	stdout, _, err := env.run(t, "queue", "import", importPath)
	if err != nil {
		t.Fatalf("queue import: %v", err)
	}
	requireContains(t, stdout, "Imported 2 items")
	requireContains(t, testsupport.ReadFile(t, env.ledgerPath+".bak"), "A,PLANNED")
	ledger := testsupport.ReadFile(t, env.ledgerPath)
	requireContains(t, ledger, "difficulty")
	requireContains(t, ledger, "C,READY")
}

func TestQueueStatusShowsBuffer(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "A,READY,", "B,READY,", "C,PLANNED,")

	stdout, _, err := env.run(t, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, stdout, "Buffer sufficient (2 READY items")
	requireContains(t, stdout, "Approved Topic")
}

func TestAnalyticsCommandSince(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t,
		"Old,PUBLISHED,2024-01-01T00:00:00Z",
		"New,PUBLISHED,2024-06-01T00:00:00Z",
	)

	stdout, _, err := env.run(t, "analytics", "--since", "2024-05-01")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	requireContains(t, stdout, "New")
	if strings.Contains(stdout, "Old") {
		t.Fatalf("expected Old to be filtered out:\n%s", stdout)
	}

	empty := setupCLIEnv(t, "")
	stdout, _, err = empty.run(t, "analytics")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	requireContains(t, stdout, "No published videos to analyze.")
}

func TestCorruptLedgerExitsWithStorageCode(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "A,SOMETIMES,")

	_, _, err := env.run(t, "propose")
	if err == nil {
		t.Fatal("expected error for corrupt ledger")
	}
	if code := exitCode(err); code != exitStorage {
		t.Fatalf("exit code = %d, want %d (%v)", code, exitStorage, err)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "quizline", "config.toml")
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, testsupport.ReadFile(t, target), "[approval]")

	cmd = newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}

func TestDoctorPassesWithAutoBackend(t *testing.T) {
	env := setupCLIEnv(t, "")
	env.seed(t, "A,PLANNED,")

	stdout, _, err := env.run(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, stdout)
	}
	requireContains(t, stdout, "[OK]")
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("wrap: %w", queue.ErrStorageUnavailable), exitStorage},
		{queue.ErrStorageWriteFailed, exitStorage},
		{fmt.Errorf("propose-topic: %w", queue.ErrConflict), exitConflict},
		{queue.ErrLedgerBusy, exitConflict},
		{approval.ErrTimeout, exitApproval},
		{approval.ErrInvalidChoice, exitApproval},
		{services.Wrap(services.ErrExternal, "upload-schedule", "upload", "x", nil), exitExternal},
		{fmt.Errorf("%w: bad", errConfig), exitConfig},
		{errors.New("boom"), exitFailure},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestLogsCommandFiltersStage(t *testing.T) {
	env := setupCLIEnv(t, "")
	logPath := filepath.Join(filepath.Dir(env.configPath), "logs", "quizline.log")
	testsupport.WriteLedgerCSV(t, logPath,
		"2024-05-01T12:00:00Z INFO stage/propose-topic: stage started",
		"2024-05-01T12:00:01Z INFO stage/buffer-check: stage started",
	)

	stdout, _, err := env.run(t, "logs", "--stage", "buffer-check")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, stdout, "buffer-check: stage started")
	if strings.Contains(stdout, "propose-topic") {
		t.Fatalf("unexpected propose-topic line:\n%s", stdout)
	}
}
