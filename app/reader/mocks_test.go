package reader

import (
	"context"
	"sync"

	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	"github.com/Simooonnnnn/Novascope-sub001/app/summary"
	"github.com/samber/lo"
)

// storeFake is an in-memory store.Interface for controller tests.
type storeFake struct {
	mu       sync.Mutex
	feeds    []store.Feed
	settings store.Settings
	watchers []chan struct{}
}

func newStoreFake(feeds ...store.Feed) *storeFake {
	return &storeFake{feeds: feeds, settings: store.DefaultSettings()}
}

func (s *storeFake) List(context.Context) ([]store.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Feed(nil), s.feeds...), nil
}

func (s *storeFake) Enabled(ctx context.Context) ([]store.Feed, error) {
	feeds, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(feeds, func(f store.Feed, _ int) bool { return f.Enabled }), nil
}

func (s *storeFake) Get(_ context.Context, id string) (store.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.feeds {
		if f.ID == id {
			return f, nil
		}
	}
	return store.Feed{}, store.ErrNotFound
}

func (s *storeFake) Put(_ context.Context, f store.Feed) error {
	s.mu.Lock()
	replaced := false
	for i := range s.feeds {
		if s.feeds[i].ID == f.ID {
			s.feeds[i] = f
			replaced = true
		}
	}
	if !replaced {
		s.feeds = append(s.feeds, f)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *storeFake) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	s.feeds = lo.Filter(s.feeds, func(f store.Feed, _ int) bool { return f.ID != id })
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *storeFake) SetEnabled(ctx context.Context, id string, enabled bool) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	f.Enabled = enabled
	return s.Put(ctx, f)
}

func (s *storeFake) Settings(context.Context) (store.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *storeFake) PutSettings(_ context.Context, settings store.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *storeFake) Watch() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	s.watchers = append(s.watchers, ch)
	return ch
}

func (s *storeFake) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *storeFake) Close() error { return nil }

// FetcherMock mocks Fetcher.
type FetcherMock struct {
	FetchFunc      func(ctx context.Context, f store.Feed) ([]store.Article, error)
	ClearCacheFunc func()
}

func (m *FetcherMock) Fetch(ctx context.Context, f store.Feed) ([]store.Article, error) {
	return m.FetchFunc(ctx, f)
}

func (m *FetcherMock) ClearCache() {
	if m.ClearCacheFunc != nil {
		m.ClearCacheFunc()
	}
}

// SummarizerMock mocks Summarizer.
type SummarizerMock struct {
	ReadyFunc      func() bool
	SummarizeFunc  func(ctx context.Context, a store.Article) <-chan summary.Update
	FallbackFunc   func(a store.Article, maxWords int) (string, error)
	InitializeFunc func(ctx context.Context) error
	ImportFunc     func(ctx context.Context, locator string, progress func(pct int)) error
}

func (m *SummarizerMock) Ready() bool {
	if m.ReadyFunc == nil {
		return false
	}
	return m.ReadyFunc()
}

func (m *SummarizerMock) Summarize(ctx context.Context, a store.Article) <-chan summary.Update {
	return m.SummarizeFunc(ctx, a)
}

func (m *SummarizerMock) Fallback(a store.Article, maxWords int) (string, error) {
	return m.FallbackFunc(a, maxWords)
}

func (m *SummarizerMock) Initialize(ctx context.Context) error {
	if m.InitializeFunc == nil {
		return nil
	}
	return m.InitializeFunc(ctx)
}

func (m *SummarizerMock) Import(ctx context.Context, locator string, progress func(pct int)) error {
	return m.ImportFunc(ctx, locator, progress)
}
