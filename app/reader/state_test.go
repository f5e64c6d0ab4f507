package reader

import (
	"sync"
	"testing"
	"time"

	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_UpdateIsAtomic(t *testing.T) {
	s := NewState()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(snap Snapshot) Snapshot {
				snap.Articles = append(append([]store.Article(nil), snap.Articles...), store.Article{})
				snap.Bookmarked = nil
				return snap
			})
		}()
	}
	wg.Wait()

	assert.Len(t, s.Get().Articles, 50, "no update may be lost or interleaved")
}

func TestState_WatchDeliversCurrentImmediately(t *testing.T) {
	s := NewState()
	s.Update(func(snap Snapshot) Snapshot {
		snap.Error = "boom"
		return snap
	})

	select {
	case snap := <-s.Watch():
		assert.Equal(t, "boom", snap.Error)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestState_WatchLatestWins(t *testing.T) {
	s := NewState()
	ch := s.Watch()
	<-ch // drain the initial snapshot

	for i := 0; i < 10; i++ {
		i := i
		s.Update(func(snap Snapshot) Snapshot {
			snap.Import = ImportState{Status: ImportRunning, Progress: i * 10}
			return snap
		})
	}

	// an unread watcher holds only the newest snapshot
	select {
	case snap := <-ch:
		assert.Equal(t, 90, snap.Import.Progress)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestState_CloseReleasesWatchers(t *testing.T) {
	s := NewState()
	ch := s.Watch()
	<-ch

	s.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "watcher must be released on close")
	case <-time.After(time.Second):
		t.Fatal("watcher still blocked after close")
	}

	// watching a closed state yields an already closed channel
	_, ok := <-s.Watch()
	assert.False(t, ok)
}

func TestState_Unwatch(t *testing.T) {
	s := NewState()
	ch := s.Watch()
	<-ch

	s.Unwatch(ch)
	s.Update(func(snap Snapshot) Snapshot {
		snap.Loading = true
		return snap
	})

	select {
	case _, ok := <-ch:
		require.False(t, ok, "removed watcher must not receive snapshots")
	default:
	}
}
