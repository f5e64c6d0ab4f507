package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Simooonnnnn/Novascope-sub001/pkg/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func TestSupervisor_Go_supersedes(t *testing.T) {
	s := NewSupervisor()
	defer s.Close()

	started := make(chan struct{})
	stopped := make(chan struct{})
	ran := make(chan struct{})

	s.Go(Load, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(stopped)
	})
	recv(t, started, "first task never started")

	s.Go(Load, func(ctx context.Context) {
		select {
		case <-stopped:
		default:
			t.Error("replacement ran before the superseded task returned")
		}
		assert.NoError(t, ctx.Err())
		close(ran)
	})
	recv(t, ran, "replacement never ran")
}

func TestSupervisor_Go_slotsAreIndependent(t *testing.T) {
	s := NewSupervisor()
	defer s.Close()

	blocked := make(chan struct{})
	ran := make(chan struct{})

	s.Go(Load, func(ctx context.Context) {
		close(blocked)
		<-ctx.Done()
	})
	recv(t, blocked, "load task never started")

	s.Go(Summary, func(context.Context) { close(ran) })
	recv(t, ran, "summary task blocked by an unrelated slot")
}

func TestSupervisor_Cancel_waits(t *testing.T) {
	s := NewSupervisor()
	defer s.Close()

	started := make(chan struct{})
	var finished atomic.Bool

	s.Go(Import, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished.Store(true)
	})
	recv(t, started, "task never started")

	s.Cancel(Import)
	assert.True(t, finished.Load(), "Cancel must wait for the task to return")

	// cancelling an empty slot is a no-op
	s.Cancel(Import)
}

func TestSupervisor_Close_preventsNewTasks(t *testing.T) {
	s := NewSupervisor()

	started := make(chan struct{})
	s.Go(Load, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	recv(t, started, "task never started")

	s.Close()

	s.Go(Load, func(context.Context) { t.Fatal("task started after Close") })
	time.Sleep(50 * time.Millisecond)
}

func TestSupervisor_Go_attachesJobID(t *testing.T) {
	s := NewSupervisor()
	defer s.Close()

	ids := make(chan string, 1)
	s.Go(Load, func(ctx context.Context) {
		id, ok := logx.JobIDFromContext(ctx)
		require.True(t, ok)
		ids <- id
	})

	select {
	case id := <-ids:
		assert.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}
