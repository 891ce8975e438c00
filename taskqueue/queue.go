package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"rental-pipeline/metrics"
	"rental-pipeline/utils"
)

// DefaultResultTTL is how long settled results stay retrievable by id.
const DefaultResultTTL = 24 * time.Hour

type registration struct {
	handler Handler
	policy  utils.RetryConfig
}

// Queue dispatches chains and groups onto a bounded worker pool.
type Queue struct {
	pool    *utils.WorkerPool
	logger  *utils.Logger
	metrics *metrics.PipelineMetrics
	results *gocache.Cache
	backoff func(int) time.Duration
	spacing int

	mu       sync.RWMutex
	handlers map[string]registration
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *utils.Logger) Option {
	return func(q *Queue) { q.logger = l.With("taskqueue") }
}

// WithMetrics records task outcomes.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithBackoff overrides the backoff of every registered retry policy.
func WithBackoff(b func(int) time.Duration) Option {
	return func(q *Queue) { q.backoff = b }
}

// WithStartSpacing spaces task attempt starts at least ms milliseconds apart.
func WithStartSpacing(ms int) Option {
	return func(q *Queue) { q.spacing = ms }
}

// WithResultTTL sets how long results stay retrievable.
func WithResultTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.results = gocache.New(ttl, ttl) }
}

// New creates a queue running at most workers task attempts at once.
func New(workers int, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger:   utils.NopLogger(),
		handlers: make(map[string]registration),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.pool = utils.NewWorkerPool(workers, q.spacing)
	if q.results == nil {
		q.results = gocache.New(DefaultResultTTL, time.Hour)
	}
	return q
}

// Workers is the number of task attempts that may run at once.
func (q *Queue) Workers() int { return q.pool.Size() }

// Register binds a task name to its handler and retry policy.
func (q *Queue) Register(name string, h Handler, policy utils.RetryConfig) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = registration{handler: h, policy: policy}
}

// Delay dispatches a single signature.
func (q *Queue) Delay(sig Signature) (*AsyncResult, error) {
	return q.DelayChain(Chain{sig})
}

// DelayChain dispatches a chain. The returned result settles with the value
// of the last stage that ran.
func (q *Queue) DelayChain(chain Chain) (*AsyncResult, error) {
	if err := q.validate(chain); err != nil {
		return nil, err
	}
	return q.start(chain), nil
}

// DelayGroup dispatches every member of g. onSettle, if non-nil, runs once
// after all members have settled.
func (q *Queue) DelayGroup(g Group, onSettle func(*GroupResult)) (*GroupResult, error) {
	for _, w := range g {
		if err := q.validate(w.stages()); err != nil {
			return nil, err
		}
	}

	gr := &GroupResult{ID: uuid.NewString(), done: make(chan struct{})}
	for _, w := range g {
		gr.Members = append(gr.Members, q.start(w.stages()))
	}
	q.results.SetDefault(gr.ID, gr)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for _, m := range gr.Members {
			<-m.done
		}
		close(gr.done)
		if onSettle != nil {
			onSettle(gr)
		}
	}()
	return gr, nil
}

// Result returns a dispatched unit by id while it is within the result TTL.
func (q *Queue) Result(id string) (*AsyncResult, bool) {
	v, ok := q.results.Get(id)
	if !ok {
		return nil, false
	}
	r, ok := v.(*AsyncResult)
	return r, ok
}

// GroupResult returns a dispatched group by id while it is within the result TTL.
func (q *Queue) GroupResult(id string) (*GroupResult, bool) {
	v, ok := q.results.Get(id)
	if !ok {
		return nil, false
	}
	g, ok := v.(*GroupResult)
	return g, ok
}

// Drain waits until nothing is pending or running, including work
// dispatched by running tasks.
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and cancels running tasks, then waits for them.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) validate(chain Chain) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	for _, sig := range chain {
		if _, ok := q.handlers[sig.Task]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTask, sig.Task)
		}
	}
	return nil
}

func (q *Queue) start(chain Chain) *AsyncResult {
	res := newAsyncResult(uuid.NewString(), chain[0].Task)
	q.results.SetDefault(res.ID, res)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.runChain(res, chain)
	}()
	return res
}

func (q *Queue) runChain(res *AsyncResult, chain Chain) {
	var parent any
	for _, sig := range chain {
		if err := sleepCtx(q.ctx, sig.Countdown); err != nil {
			res.settle(nil, err)
			return
		}

		value, err := q.execute(res, sig, parent)
		if errors.Is(err, ErrHalt) {
			q.logger.Debug("Chain %s halted at %s", res.ID, sig.Task)
			res.settle(parent, nil)
			return
		}
		if err != nil {
			q.logger.Error("Task %s (%s) failed: %v", sig.Task, res.ID, err)
			res.settle(nil, err)
			return
		}
		parent = value
	}
	res.settle(parent, nil)
}

// execute runs one stage under its retry policy. Each attempt holds a
// worker slot only while the handler runs.
func (q *Queue) execute(res *AsyncResult, sig Signature, parent any) (any, error) {
	q.mu.RLock()
	reg := q.handlers[sig.Task]
	q.mu.RUnlock()

	policy := reg.policy
	if q.backoff != nil {
		policy.Backoff = q.backoff
	}
	retryable := policy.Retryable
	policy.Retryable = func(err error) bool {
		if errors.Is(err, ErrHalt) {
			return false
		}
		return retryable == nil || retryable(err)
	}
	if policy.Logger == nil {
		policy.Logger = q.logger
	}

	var value any
	err := policy.Do(q.ctx, sig.Task, func(attempt int) error {
		if attempt > 1 {
			res.transition(sig.Task, StateRetrying)
			if q.metrics != nil {
				q.metrics.TaskRuns.WithLabelValues(sig.Task, metrics.TaskRetried).Inc()
			}
		} else {
			res.transition(sig.Task, StateRunning)
		}

		started := time.Now()
		v, err := q.attempt(reg.handler, sig, parent)
		q.record(sig.Task, err, time.Since(started))
		value = v
		return err
	})
	return value, err
}

func (q *Queue) attempt(h Handler, sig Signature, parent any) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)

	err := q.pool.Submit(q.ctx, func() {
		if q.metrics != nil {
			q.metrics.TasksInFlight.Inc()
			defer q.metrics.TasksInFlight.Dec()
		}
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("task %s panicked: %v", sig.Task, r)}
			}
		}()
		v, err := h(q.ctx, parent, sig.Payload)
		ch <- outcome{value: v, err: err}
	})
	if err != nil {
		return nil, err
	}
	o := <-ch
	return o.value, o.err
}

func (q *Queue) record(task string, err error, elapsed time.Duration) {
	if q.metrics == nil {
		return
	}
	outcome := metrics.TaskSucceeded
	switch {
	case errors.Is(err, ErrHalt):
		outcome = metrics.TaskHalted
	case err != nil:
		outcome = metrics.TaskFailed
	}
	q.metrics.RecordTask(task, outcome, elapsed)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
