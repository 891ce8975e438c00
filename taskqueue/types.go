// Package taskqueue runs chains and groups of named tasks in process. Work
// is described as data (Signature, Chain, Group) and interpreted by a Queue
// backed by a bounded worker pool, per-task retry policies and a TTL result
// backend that callers poll by id.
package taskqueue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrHalt stops a chain without failing it. The chain's result is the
	// last value produced before the halting stage.
	ErrHalt = errors.New("taskqueue: chain halted")
	// ErrUnknownTask is returned when dispatching a name nobody registered.
	ErrUnknownTask = errors.New("taskqueue: unknown task")
	// ErrEmptyChain is returned when dispatching a chain without stages.
	ErrEmptyChain = errors.New("taskqueue: empty chain")
	// ErrClosed is returned when dispatching on a closed queue.
	ErrClosed = errors.New("taskqueue: queue closed")
)

// Handler executes one task. parent is the value produced by the previous
// stage of a chain, or nil for the first stage.
type Handler func(ctx context.Context, parent any, payload any) (any, error)

// Work is anything a Group can hold: a Signature or a Chain.
type Work interface {
	stages() Chain
}

// Signature names a task, its payload and how long to wait before running it.
type Signature struct {
	Task      string
	Payload   any
	Countdown time.Duration
}

func (s Signature) stages() Chain { return Chain{s} }

// Chain runs its stages in order, feeding each result to the next stage.
type Chain []Signature

func (c Chain) stages() Chain { return c }

// Group runs its members independently.
type Group []Work

// State is the lifecycle of a dispatched unit.
type State int

const (
	StatePending State = iota
	StateRunning
	StateRetrying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the state is terminal.
func (s State) Done() bool {
	return s == StateCompleted || s == StateFailed
}
