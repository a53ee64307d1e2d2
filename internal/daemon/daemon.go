package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"quizline/internal/config"
	"quizline/internal/logging"
	"quizline/internal/stage"
)

const defaultDebounce = 500 * time.Millisecond

// Daemon schedules stage invocations and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	runner *stage.Runner
	logger *slog.Logger

	lockPath   string
	lock       *flock.Flock
	ledgerPath string
	watch      bool
	debounce   time.Duration
	jobs       []*job

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	errMu   sync.Mutex
	err     error
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithDebounce sets the quiet period between the last ledger write and the
// buffer check it triggers.
func WithDebounce(d time.Duration) Option {
	return func(dm *Daemon) {
		if d > 0 {
			dm.debounce = d
		}
	}
}

// WithInterval overrides the interval of a single stage job.
func WithInterval(name string, interval time.Duration) Option {
	return func(dm *Daemon) {
		for _, j := range dm.jobs {
			if j.name == name {
				j.interval = interval
			}
		}
	}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	LedgerPath   string
	Watching     bool
	Jobs         []JobStatus
}

// New constructs a daemon from the schedule section of cfg.
func New(cfg *config.Config, runner *stage.Runner, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || runner == nil || logger == nil {
		return nil, errors.New("daemon requires config, stage runner, and logger")
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:        cfg,
		runner:     runner,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		ledgerPath: runner.Store.Path(),
		watch:      cfg.Schedule.WatchLedger,
		debounce:   defaultDebounce,
		jobs:       buildJobs(cfg.Schedule, runner),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock and launches the stage loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another quizlined instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	scheduled := 0
	for _, j := range d.jobs {
		if j.interval <= 0 {
			continue
		}
		scheduled++
		j := j
		group.Go(func() error {
			d.loop(groupCtx, j)
			return nil
		})
	}
	if d.watch {
		group.Go(func() error {
			return d.watchLedger(groupCtx)
		})
	}

	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)
	go func() {
		defer close(d.done)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			d.setErr(err)
			logging.ErrorWithContext(d.logger, "scheduler stopped", "daemon_failure", logging.Error(err))
		}
	}()

	d.logger.Info("quizlined started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("ledger", d.ledgerPath),
		logging.Int("jobs", scheduled),
		logging.Bool("watch_ledger", d.watch),
	)
	return nil
}

// Stop cancels the stage loops, waits for in-flight invocations and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("quizlined stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Done is closed once every loop has exited. It returns nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Err reports why the loops exited early, if they did.
func (d *Daemon) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *Daemon) setErr(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	d.err = err
}

// Close stops the daemon and releases the ledger store.
func (d *Daemon) Close() error {
	d.Stop()
	_ = d.lock.Close()
	if d.runner.Store != nil {
		return d.runner.Store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	jobs := make([]JobStatus, 0, len(d.jobs))
	for _, j := range d.jobs {
		jobs = append(jobs, j.snapshot())
	}
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		LedgerPath:   d.ledgerPath,
		Watching:     d.watch,
		Jobs:         jobs,
	}
}

// Trigger runs the named job once, outside its schedule.
func (d *Daemon) Trigger(ctx context.Context, name string) (JobStatus, error) {
	j := d.job(name)
	if j == nil {
		return JobStatus{}, fmt.Errorf("unknown job %q", name)
	}
	d.invoke(ctx, j, "manual")
	return j.snapshot(), nil
}

func (d *Daemon) job(name string) *job {
	for _, j := range d.jobs {
		if j.name == name {
			return j
		}
	}
	return nil
}
