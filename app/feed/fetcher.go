// Package feed fetches and parses feed documents into articles.
package feed

import (
	"context"
	"crypto/sha1" //nolint:gosec // used for stable item ids, not security
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	cache "github.com/go-pkgz/expirable-cache/v2"
	"github.com/mmcdole/gofeed"
	"golang.org/x/exp/slog"
)

// Fetcher downloads and parses a single feed into articles. Responses are
// memoized per feed URL until the TTL elapses or the cache is cleared.
type Fetcher struct {
	log   *slog.Logger
	cl    *http.Client
	cache cache.Cache[string, []store.Article]
}

// NewFetcher creates new Fetcher.
func NewFetcher(lg *slog.Logger, cl *http.Client, ttl time.Duration) *Fetcher {
	return &Fetcher{
		log: lg,
		cl:  cl,
		cache: cache.NewCache[string, []store.Article]().
			WithLRU().
			WithMaxKeys(100).
			WithTTL(ttl),
	}
}

// Fetch returns the articles of the given feed.
func (f *Fetcher) Fetch(ctx context.Context, fd store.Feed) ([]store.Article, error) {
	if items, ok := f.cache.Get(fd.URL); ok {
		f.log.DebugCtx(ctx, "feed served from cache", slog.String("url", fd.URL))
		return clone(items), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fd.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.cl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.WarnCtx(ctx, "failed to close response body", slog.Any("err", err))
		}
	}()

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := f.articles(fd, parsed)
	f.cache.Set(fd.URL, items, 0)

	return clone(items), nil
}

// ClearCache invalidates all memoized responses.
func (f *Fetcher) ClearCache() { f.cache.Purge() }

func (f *Fetcher) articles(fd store.Feed, parsed *gofeed.Feed) []store.Article {
	source := parsed.Title
	if source == "" {
		source = fd.Name
	}

	result := make([]store.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		a := store.Article{
			ID:      itemID(fd, item),
			Title:   item.Title,
			URL:     item.Link,
			Content: item.Content,
			Source:  source,
		}

		if a.Content == "" {
			a.Content = item.Description
		}
		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		if item.PublishedParsed != nil {
			a.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			a.Published = *item.UpdatedParsed
		}

		result = append(result, a)
	}

	return result
}

// itemID prefers the feed-provided identifiers; items without any get a
// digest of their feed url, title and date, stable across refreshes.
func itemID(fd store.Feed, item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}

	h := sha1.New() //nolint:gosec
	_, _ = fmt.Fprintf(h, "%s\n%s\n%s", fd.URL, item.Title, item.Published)
	return hex.EncodeToString(h.Sum(nil))
}

// clone protects the cached slice from being stamped by aggregation cycles.
func clone(items []store.Article) []store.Article {
	return append(make([]store.Article, 0, len(items)), items...)
}
