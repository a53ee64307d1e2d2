package daemon

import (
	"context"
	"sync"
	"time"

	"quizline/internal/config"
	"quizline/internal/logging"
	"quizline/internal/stage"
)

// JobStatus summarizes the last invocation of a scheduled stage.
type JobStatus struct {
	Name        string
	Interval    time.Duration
	Runs        int
	LastRun     time.Time
	LastOutcome string
	LastError   string
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (stage.Outcome, error)

	// mu serializes invocations of the same job; ticks and watch triggers
	// may overlap.
	mu   sync.Mutex
	last JobStatus
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func buildJobs(sched config.Schedule, runner *stage.Runner) []*job {
	analyticsWindow := seconds(sched.AnalyticsSeconds)
	return []*job{
		{name: stage.NameProposeTopic, interval: seconds(sched.ProposeSeconds), run: runner.Propose},
		{name: stage.NameQueueApproval, interval: seconds(sched.EnqueueSeconds), run: runner.Enqueue},
		{name: stage.NameUploadSchedule, interval: seconds(sched.PublishSeconds), run: runner.Publish},
		{
			name:     stage.NameBufferCheck,
			interval: seconds(sched.BufferCheckSeconds),
			run: func(ctx context.Context) (stage.Outcome, error) {
				out, _, err := runner.BufferCheck(ctx)
				return out, err
			},
		},
		{
			name:     stage.NameAnalytics,
			interval: analyticsWindow,
			run: func(ctx context.Context) (stage.Outcome, error) {
				var since time.Time
				if analyticsWindow > 0 {
					since = time.Now().Add(-analyticsWindow)
				}
				out, _, err := runner.Analytics(ctx, since)
				return out, err
			},
		},
	}
}

func (j *job) snapshot() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.last
	s.Name = j.name
	s.Interval = j.interval
	return s
}

// loop invokes the job immediately and then on every tick until ctx ends.
// Stage failures are logged by the runner and never stop the loop.
func (d *Daemon) loop(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	d.invoke(ctx, j, "schedule")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.invoke(ctx, j, "schedule")
		}
	}
}

func (d *Daemon) invoke(ctx context.Context, j *job, trigger string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	out, err := j.run(ctx)
	j.last.Runs++
	j.last.LastRun = time.Now()
	j.last.LastOutcome = ""
	j.last.LastError = ""
	if err != nil {
		j.last.LastError = err.Error()
		d.logger.Debug("scheduled stage failed",
			logging.String(logging.FieldStage, j.name),
			logging.String("trigger", trigger),
			logging.Error(err),
		)
		return
	}
	j.last.LastOutcome = out.String()
}
