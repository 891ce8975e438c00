package taskqueue

import (
	"context"
	"errors"
	"sync"
)

// AsyncResult tracks one dispatched signature or chain.
type AsyncResult struct {
	ID string

	mu    sync.Mutex
	task  string
	state State
	value any
	err   error
	done  chan struct{}
}

func newAsyncResult(id, task string) *AsyncResult {
	return &AsyncResult{ID: id, task: task, done: make(chan struct{})}
}

// Task is the name of the stage currently running, or the last one run.
func (r *AsyncResult) Task() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task
}

// State returns the current state.
func (r *AsyncResult) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Ready reports whether the unit has settled.
func (r *AsyncResult) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Done is closed when the unit settles.
func (r *AsyncResult) Done() <-chan struct{} { return r.done }

// Get waits for the unit to settle and returns its value and error.
func (r *AsyncResult) Get(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.err
}

func (r *AsyncResult) transition(task string, s State) {
	r.mu.Lock()
	r.task, r.state = task, s
	r.mu.Unlock()
}

func (r *AsyncResult) settle(value any, err error) {
	r.mu.Lock()
	r.value, r.err = value, err
	if err != nil {
		r.state = StateFailed
	} else {
		r.state = StateCompleted
	}
	r.mu.Unlock()
	close(r.done)
}

// GroupResult tracks the members of one dispatched group.
type GroupResult struct {
	ID      string
	Members []*AsyncResult

	done chan struct{}
}

// Ready reports whether every member has settled.
func (g *GroupResult) Ready() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Done is closed once every member has settled.
func (g *GroupResult) Done() <-chan struct{} { return g.done }

// Wait blocks until the group settles and joins the member errors.
func (g *GroupResult) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
	}
	return g.Err()
}

// Err joins the errors of settled members.
func (g *GroupResult) Err() error {
	var errs []error
	for _, m := range g.Members {
		if !m.Ready() {
			continue
		}
		if _, err := m.Get(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Counts returns how many members completed and how many failed so far.
func (g *GroupResult) Counts() (completed, failed int) {
	for _, m := range g.Members {
		switch m.State() {
		case StateCompleted:
			completed++
		case StateFailed:
			failed++
		}
	}
	return completed, failed
}
