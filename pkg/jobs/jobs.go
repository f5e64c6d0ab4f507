// Package jobs provides a supervisor of named job slots. Each slot holds
// at most one running task; starting a new task in an occupied slot cancels
// the previous one and waits for it to return before the replacement runs.
package jobs

import (
	"context"
	"sync"

	"github.com/Simooonnnnn/Novascope-sub001/pkg/logx"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Slot is a name of a job slot.
type Slot string

// Slots of the application.
const (
	Load    Slot = "load"
	Summary Slot = "summary"
	Import  Slot = "import"
)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs tasks in named slots.
type Supervisor struct {
	Options

	mu     sync.Mutex
	tasks  map[Slot]*task
	closed bool
}

// NewSupervisor creates a new Supervisor.
func NewSupervisor(opts ...Option) *Supervisor {
	options := Options{Logger: slog.New(logx.NoOp())}
	for _, opt := range opts {
		opt(&options)
	}

	return &Supervisor{
		Options: options,
		tasks:   map[Slot]*task{},
	}
}

// Go starts fn in the given slot, superseding the task currently occupying
// it. The call does not block: the replacement waits for the superseded
// task to return on its own goroutine, so a task and its successor never
// run at the same time within one slot.
func (s *Supervisor) Go(slot Slot, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	prev := s.tasks[slot]

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logx.ContextWithJobID(ctx, uuid.NewString())

	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[slot] = t
	s.mu.Unlock()

	go func() {
		defer close(t.done)
		defer cancel()

		if prev != nil {
			prev.cancel()
			<-prev.done
		}

		// the task itself may have been superseded while waiting
		if ctx.Err() != nil {
			return
		}

		s.Logger.DebugCtx(ctx, "starting job", slog.String("slot", string(slot)))
		fn(ctx)
		s.Logger.DebugCtx(ctx, "job finished", slog.String("slot", string(slot)))
	}()
}

// Cancel cancels the task occupying the given slot, if any, and waits for
// it to return.
func (s *Supervisor) Cancel(slot Slot) {
	s.mu.Lock()
	t := s.tasks[slot]
	s.mu.Unlock()

	if t == nil {
		return
	}

	t.cancel()
	<-t.done
}

// Close cancels all running tasks, waits for them to return and prevents
// any further Go calls from starting tasks.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}
