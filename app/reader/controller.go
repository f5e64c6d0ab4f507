package reader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	"github.com/Simooonnnnn/Novascope-sub001/app/summary"
	"github.com/Simooonnnnn/Novascope-sub001/pkg/jobs"
	"github.com/Simooonnnnn/Novascope-sub001/pkg/logx"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

//go:generate moq -out mock_fetcher.go . Fetcher
// Fetcher fetches articles of a single feed.
type Fetcher interface {
	Fetch(ctx context.Context, f store.Feed) ([]store.Article, error)
	ClearCache()
}

//go:generate moq -out mock_summarizer.go . Summarizer
// Summarizer is the boundary of the summarization model.
type Summarizer interface {
	Ready() bool
	Summarize(ctx context.Context, a store.Article) <-chan summary.Update
	Fallback(a store.Article, maxWords int) (string, error)
	Initialize(ctx context.Context) error
	Import(ctx context.Context, locator string, progress func(pct int)) error
}

// Controller coordinates feed aggregation, the summary pipeline and the
// model import pipeline, and publishes every outcome into its State.
type Controller struct {
	log        *slog.Logger
	store      store.Interface
	fetcher    Fetcher
	summarizer Summarizer

	jobs      *jobs.Supervisor
	state     *State
	bookmarks *Bookmarks

	summaryTimeout time.Duration
	initTimeout    time.Duration

	smu      sync.Mutex
	settings store.Settings

	wg sync.WaitGroup
}

// Config defines parameters for the controller.
type Config struct {
	Logger         *slog.Logger
	Store          store.Interface
	Fetcher        Fetcher
	Summarizer     Summarizer
	SummaryTimeout time.Duration
	InitTimeout    time.Duration
}

// NewController creates new Controller.
func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(logx.NoOp())
	}
	if cfg.SummaryTimeout == 0 {
		cfg.SummaryTimeout = 10 * time.Second
	}
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 30 * time.Second
	}

	return &Controller{
		log:            cfg.Logger,
		store:          cfg.Store,
		fetcher:        cfg.Fetcher,
		summarizer:     cfg.Summarizer,
		jobs:           jobs.NewSupervisor(jobs.WithLogger(cfg.Logger)),
		state:          NewState(),
		bookmarks:      NewBookmarks(),
		summaryTimeout: cfg.SummaryTimeout,
		initTimeout:    cfg.InitTimeout,
		settings:       store.DefaultSettings(),
	}
}

// Snapshot returns the current published snapshot.
func (c *Controller) Snapshot() Snapshot { return c.state.Get() }

// Watch returns a channel receiving published snapshots.
func (c *Controller) Watch() <-chan Snapshot { return c.state.Watch() }

// Run loads persisted settings, triggers the initial load and re-aggregates
// silently on every external feed-list change until the context is done.
func (c *Controller) Run(ctx context.Context) {
	if settings, err := c.store.Settings(ctx); err != nil {
		c.log.WarnCtx(ctx, "failed to load settings", slog.Any("err", err))
	} else {
		c.smu.Lock()
		c.settings = settings
		c.smu.Unlock()
	}

	c.LoadFeeds(false)

	changes := c.store.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			c.LoadFeeds(false)
		}
	}
}

// Close cancels all running pipelines, waits for background tasks and
// releases snapshot watchers.
func (c *Controller) Close() {
	c.jobs.Close()
	c.wg.Wait()
	c.state.Close()
}

// LoadFeeds aggregates all enabled feeds into a new snapshot, superseding
// any load already in flight.
func (c *Controller) LoadFeeds(force bool) {
	c.jobs.Go(jobs.Load, func(ctx context.Context) { c.load(ctx, force) })
}

func (c *Controller) load(ctx context.Context, force bool) {
	if force {
		c.fetcher.ClearCache()
	}

	c.state.Update(func(s Snapshot) Snapshot {
		// a non-forced re-trigger over a non-empty list stays invisible
		s.Loading = !force && len(s.Articles) == 0
		s.Refreshing = force
		s.Error = ""
		return s
	})

	feeds, err := c.store.Enabled(ctx)
	if err != nil {
		c.publishLoadError(ctx, fmt.Errorf("list enabled feeds: %w", err))
		return
	}

	if len(feeds) == 0 {
		if ctx.Err() != nil {
			return
		}
		c.state.Update(func(s Snapshot) Snapshot {
			return Snapshot{Summary: s.Summary, Import: s.Import}
		})
		return
	}

	results := make([][]store.Article, len(feeds))
	var failed int32
	fetchTimeout := c.Settings().FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = store.DefaultSettings().FetchTimeout
	}

	ewg, fctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		i, f := i, f
		ewg.Go(func() error {
			fctx, cancel := context.WithTimeout(fctx, fetchTimeout)
			defer cancel()

			items, err := c.fetcher.Fetch(fctx, f)
			if err != nil {
				// a single feed failure never fails the whole load
				c.log.WarnCtx(fctx, "failed to fetch feed",
					slog.String("feed", f.ID), slog.Any("err", err))
				atomic.AddInt32(&failed, 1)
				return nil
			}

			for j := range items {
				items[j].FeedID = f.ID
				if items[j].Source == "" {
					items[j].Source = f.Name
				}
			}
			results[i] = items
			return nil
		})
	}
	// full barrier: nothing is published before every fetch has finished
	_ = ewg.Wait()

	if ctx.Err() != nil {
		// superseded mid-flight: the replacement owns the next snapshot
		return
	}

	if int(failed) == len(feeds) {
		c.publishLoadError(ctx, fmt.Errorf("all %d feeds failed to fetch", len(feeds)))
		return
	}

	all := lo.Flatten(results)

	// bookmark flags come from the index at publish time, so a toggle made
	// during the fetch is not lost
	for i := range all {
		all[i].Bookmarked = c.bookmarks.Has(all[i].ID)
	}

	all = lo.UniqBy(all, func(a store.Article) string { return a.ID })

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Published.Equal(b.Published) {
			return a.Published.After(b.Published)
		}
		if a.FeedID != b.FeedID {
			return a.FeedID < b.FeedID
		}
		return a.ID < b.ID
	})

	for i := range all {
		all[i].Lead = i == 0
	}

	bookmarked := lo.Filter(all, func(a store.Article, _ int) bool { return a.Bookmarked })

	c.state.Update(func(s Snapshot) Snapshot {
		s.Loading, s.Refreshing, s.Error = false, false, ""
		s.Articles, s.Bookmarked = all, bookmarked
		if s.Selected != nil {
			if cur, ok := lo.Find(all, func(a store.Article) bool { return a.ID == s.Selected.ID }); ok {
				s.Selected = &cur
			}
		}
		return s
	})
}

func (c *Controller) publishLoadError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	c.log.ErrorCtx(ctx, "load failed", slog.Any("err", err))
	c.state.Update(func(s Snapshot) Snapshot {
		// previous article lists are retained
		s.Loading, s.Refreshing = false, false
		s.Error = err.Error()
		return s
	})
}

// ToggleBookmark flips the bookmark membership of the article and rederives
// the displayed lists. It is synchronous and idempotent under double-toggle.
func (c *Controller) ToggleBookmark(id string) {
	on := c.bookmarks.Toggle(id)

	c.state.Update(func(s Snapshot) Snapshot {
		s.Articles = lo.Map(s.Articles, func(a store.Article, _ int) store.Article {
			if a.ID == id {
				a.Bookmarked = on
			}
			return a
		})
		s.Bookmarked = lo.Filter(s.Articles, func(a store.Article, _ int) bool { return a.Bookmarked })
		if s.Selected != nil && s.Selected.ID == id {
			sel := *s.Selected
			sel.Bookmarked = on
			s.Selected = &sel
		}
		return s
	})
}

// AddFeed stores a new enabled feed; the aggregation re-runs on the store's
// change notification.
func (c *Controller) AddFeed(name, url, category string) {
	f := store.Feed{ID: uuid.NewString(), Name: name, URL: url, Category: category, Enabled: true}
	c.background("add feed", func(ctx context.Context) error { return c.store.Put(ctx, f) })
}

// DeleteFeed removes the feed from the store and immediately drops its
// articles from the displayed lists, so stale content is never shown while
// the deletion settles.
func (c *Controller) DeleteFeed(id string) {
	c.dropFeedArticles(id)
	c.background("delete feed", func(ctx context.Context) error { return c.store.Delete(ctx, id) })
}

// ToggleFeedEnabled enables or disables the feed; disabling drops its
// articles immediately, like DeleteFeed.
func (c *Controller) ToggleFeedEnabled(id string, enabled bool) {
	if !enabled {
		c.dropFeedArticles(id)
	}
	c.background("toggle feed", func(ctx context.Context) error { return c.store.SetEnabled(ctx, id, enabled) })
}

func (c *Controller) dropFeedArticles(feedID string) {
	c.state.Update(func(s Snapshot) Snapshot {
		kept := lo.Filter(s.Articles, func(a store.Article, _ int) bool { return a.FeedID != feedID })
		for i := range kept {
			kept[i].Lead = i == 0
		}

		s.Articles = kept
		s.Bookmarked = lo.Filter(kept, func(a store.Article, _ int) bool { return a.Bookmarked })
		if s.Selected != nil && s.Selected.FeedID == feedID {
			s.Selected = nil
			s.Summary = SummaryState{}
		}
		return s
	})
}

// SelectArticle marks the article as selected and starts summarizing it,
// superseding any summarization in flight.
func (c *Controller) SelectArticle(id string) {
	a, ok := lo.Find(c.state.Get().Articles, func(a store.Article) bool { return a.ID == id })
	if !ok {
		c.log.Warn("select of unknown article", slog.String("id", id))
		return
	}

	c.state.Update(func(s Snapshot) Snapshot {
		sel := a
		s.Selected = &sel
		return s
	})

	c.jobs.Go(jobs.Summary, func(ctx context.Context) { c.summarize(ctx, a) })
}

func (c *Controller) summarize(ctx context.Context, a store.Article) {
	c.publishSummary(ctx, SummaryState{Status: SummaryLoading})

	if !c.summarizer.Ready() {
		c.publishSummary(ctx, SummaryState{Status: SummaryNoModel})
		return
	}

	updates := c.summarizer.Summarize(ctx, a)

	timer := time.NewTimer(c.summaryTimeout)
	defer timer.Stop()

	got := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// soft timeout is not an error, downgrade to the fallback
			c.log.DebugCtx(ctx, "summary timed out, falling back", slog.String("article", a.ID))
			c.fallback(ctx, a)
			return
		case u, ok := <-updates:
			if !ok {
				if !got {
					c.fallback(ctx, a)
				}
				return
			}
			if u.Err != nil {
				c.log.WarnCtx(ctx, "summarizer failed, falling back", slog.Any("err", u.Err))
				c.fallback(ctx, a)
				return
			}

			got = true
			c.publishSummary(ctx, SummaryState{Status: SummaryReady, Text: u.Text})
		}
	}
}

func (c *Controller) fallback(ctx context.Context, a store.Article) {
	text, err := c.summarizer.Fallback(a, c.Settings().SummaryWords)
	if err != nil {
		c.publishSummary(ctx, SummaryState{Status: SummaryFailed, Error: err.Error()})
		return
	}
	c.publishSummary(ctx, SummaryState{Status: SummaryReady, Text: text})
}

func (c *Controller) publishSummary(ctx context.Context, st SummaryState) {
	if ctx.Err() != nil {
		// superseded, the successor owns the summary state
		return
	}
	c.state.Update(func(s Snapshot) Snapshot {
		s.Summary = st
		return s
	})
}

// ImportModel imports the model asset from the locator, streaming progress
// into the snapshot, and re-runs summarization of the selected article once
// the fresh model is in place.
func (c *Controller) ImportModel(locator string) {
	c.jobs.Go(jobs.Import, func(ctx context.Context) { c.runImport(ctx, locator) })
}

// CancelImport stops an import in progress and resets its state.
func (c *Controller) CancelImport() {
	c.jobs.Cancel(jobs.Import)
	c.state.Update(func(s Snapshot) Snapshot {
		s.Import = ImportState{}
		return s
	})
}

func (c *Controller) runImport(ctx context.Context, locator string) {
	c.publishImport(ctx, ImportState{Status: ImportRunning})

	err := c.summarizer.Import(ctx, locator, func(pct int) {
		c.publishImport(ctx, ImportState{Status: ImportRunning, Progress: pct})
	})

	if ctx.Err() != nil {
		// cancelled or superseded; asset cleanup is on the model manager
		c.state.Update(func(s Snapshot) Snapshot {
			s.Import = ImportState{}
			return s
		})
		return
	}
	if err != nil {
		c.publishImport(ctx, ImportState{Status: ImportFailed, Error: err.Error()})
		return
	}

	c.publishImport(ctx, ImportState{Status: ImportDone, Progress: 100})

	ictx, cancel := context.WithTimeout(ctx, c.initTimeout)
	defer cancel()
	if err := c.summarizer.Initialize(ictx); err != nil {
		// best effort, the next summarization retries
		c.log.WarnCtx(ctx, "model initialization failed", slog.Any("err", err))
	}

	if sel := c.state.Get().Selected; sel != nil {
		a := *sel
		c.jobs.Go(jobs.Summary, func(ctx context.Context) { c.summarize(ctx, a) })
	}
}

func (c *Controller) publishImport(ctx context.Context, st ImportState) {
	if ctx.Err() != nil {
		return
	}
	c.state.Update(func(s Snapshot) Snapshot {
		s.Import = st
		return s
	})
}

// UpdateSettings applies the settings immediately and persists them.
func (c *Controller) UpdateSettings(settings store.Settings) {
	c.smu.Lock()
	c.settings = settings
	c.smu.Unlock()

	c.background("save settings", func(ctx context.Context) error {
		return c.store.PutSettings(ctx, settings)
	})
}

// Settings returns the currently applied settings.
func (c *Controller) Settings() store.Settings {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.settings
}

// background runs a fire-and-track store mutation: failures are logged,
// Close waits for completion.
func (c *Controller) background(name string, fn func(ctx context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := fn(ctx); err != nil {
			c.log.ErrorCtx(ctx, "background task failed",
				slog.String("task", name), slog.Any("err", err))
		}
	}()
}
