package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Func is one run of a periodic job.
type Func func(ctx context.Context) error

// Job runs fn on a fixed interval until stopped. Stop cancels the context of
// an in-flight run, so nothing keeps working after the owning session ends.
type Job struct {
	name       string
	interval   time.Duration
	fn         Func
	runOnStart bool
	timeout    time.Duration
	onFailure  func(error)

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

type Option func(*Job)

// RunOnStart runs fn immediately instead of waiting for the first tick.
func RunOnStart() Option {
	return func(j *Job) { j.runOnStart = true }
}

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(j *Job) { j.timeout = d }
}

// StopOnError makes a failing run fatal: the job stops and onFailure is
// called from the job goroutine. Without it, failures are logged and the job
// keeps ticking.
func StopOnError(onFailure func(error)) Option {
	return func(j *Job) { j.onFailure = onFailure }
}

func New(name string, interval time.Duration, fn Func, opts ...Option) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		name:     name,
		interval: interval,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Job) Name() string {
	return j.name
}

// Start is a no-op for a job that was already started or stopped.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started || j.ctx.Err() != nil {
		return
	}
	j.started = true

	go j.run()
	log.Info().Str("job", j.name).Dur("interval", j.interval).Msg("job started")
}

func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		j.cancel()
		close(j.done)
		log.Info().Str("job", j.name).Msg("job stopped")
	})
}

// Running reports whether the job was started and has not stopped.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.started && j.ctx.Err() == nil
}

func (j *Job) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	if j.runOnStart && !j.tick() {
		return
	}

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			if !j.tick() {
				return
			}
		}
	}
}

// tick reports whether the job should keep running.
func (j *Job) tick() bool {
	ctx := j.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	err := j.fn(ctx)
	if err == nil || j.ctx.Err() != nil {
		return j.ctx.Err() == nil
	}

	if j.onFailure == nil {
		log.Error().Err(err).Str("job", j.name).Msg("job run failed")
		return true
	}

	log.Error().Err(err).Str("job", j.name).Msg("job run failed, stopping")
	j.Stop()
	j.onFailure(err)
	return false
}
