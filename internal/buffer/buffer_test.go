package buffer_test

import (
	"context"
	"errors"
	"testing"

	"quizline/internal/approval"
	"quizline/internal/buffer"
	"quizline/internal/logging"
	"quizline/internal/queue"
	"quizline/internal/testsupport"
)

func readyLedger(ready, other int) queue.Ledger {
	ledger := queue.NewLedger()
	for i := 0; i < ready; i++ {
		ledger.Items = append(ledger.Items, queue.Item{Topic: "r", Status: queue.StatusReady})
	}
	for i := 0; i < other; i++ {
		ledger.Items = append(ledger.Items, queue.Item{Topic: "p", Status: queue.StatusPlanned})
	}
	return ledger
}

func TestCheck(t *testing.T) {
	cases := []struct {
		name          string
		ready, low    int
		target        int
		wantRefill    bool
		wantRequested int
		wantMisconfig bool
	}{
		{name: "below watermark", ready: 3, low: 5, target: 10, wantRefill: true, wantRequested: 7},
		{name: "at watermark", ready: 5, low: 5, target: 10},
		{name: "above watermark", ready: 8, low: 5, target: 10},
		{name: "empty ledger", ready: 0, low: 1, target: 4, wantRefill: true, wantRequested: 4},
		{name: "target below ready", ready: 3, low: 5, target: 2, wantRefill: true, wantMisconfig: true},
		{name: "zero watermark", ready: 0, low: 0, target: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := buffer.Check(readyLedger(tc.ready, 2), tc.low, tc.target)
			if d.Ready != tc.ready || d.Refill != tc.wantRefill || d.Requested != tc.wantRequested || d.Misconfigured != tc.wantMisconfig {
				t.Fatalf("Check = %+v", d)
			}
		})
	}
}

func TestMonitorRequestsRefillOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatermarks(5, 10))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedLedger(t, store,
		testsupport.Row{Topic: "A", Status: queue.StatusReady},
		testsupport.Row{Topic: "B", Status: queue.StatusPlanned},
		testsupport.Row{Topic: "C", Status: queue.StatusReady},
		testsupport.Row{Topic: "D", Status: queue.StatusReady},
	)
	before := testsupport.ReadFile(t, cfg.Ledger.Path)

	gw := approval.NewScripted()
	m := &buffer.Monitor{Store: store, Gateway: gw, ChannelID: "ops", Low: 5, Target: 10, Logger: logging.NewNop()}
	d, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !d.Refill || d.Requested != 7 {
		t.Fatalf("unexpected decision %+v", d)
	}
	notes := gw.Notifications()
	if len(notes) != 1 {
		t.Fatalf("expected one notify, got %d", len(notes))
	}
	want := "Only 3 READY items left. Should I start generating 7 more to reach the target of 10?"
	if notes[0].Text != want || notes[0].ChannelID != "ops" {
		t.Fatalf("notify = %+v", notes[0])
	}
	if len(gw.Requests()) != 0 {
		t.Fatal("buffer check must not ask for approval")
	}
	if after := testsupport.ReadFile(t, cfg.Ledger.Path); after != before {
		t.Fatal("ledger changed during buffer check")
	}
}

func TestMonitorSufficientSendsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedLedger(t, store, testsupport.Row{Topic: "A", Status: queue.StatusReady})

	gw := approval.NewScripted()
	m := &buffer.Monitor{Store: store, Gateway: gw, ChannelID: "ops", Low: 1, Target: 3}
	d, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.Refill || len(gw.Notifications()) != 0 {
		t.Fatalf("expected no refill, got %+v and %d notices", d, len(gw.Notifications()))
	}
}

func TestMonitorReportsNotifyFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	gw := approval.NewScripted().FailNotify(approval.ErrUnavailable)
	m := &buffer.Monitor{Store: store, Gateway: gw, ChannelID: "ops", Low: 2, Target: 4}
	if _, err := m.Run(context.Background()); !errors.Is(err, approval.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
