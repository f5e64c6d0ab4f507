package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/samber/lo"
	bolt "go.etcd.io/bbolt"
)

const (
	feedsBktName    = "feeds"
	settingsBktName = "settings"
)

var settingsKey = []byte("settings")

// Bolt is a storage that uses BoltDB as a backend.
type Bolt struct {
	db *bolt.DB

	mu       sync.Mutex
	watchers []chan struct{}
	closed   bool
}

// NewBolt creates new Bolt storage. On the first open it seeds the
// default feed set.
func NewBolt(dir string) (*Bolt, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("make storage dir: %w", err)
	}

	db, err := bolt.Open(path.Join(dir, "novascope.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to make boltdb for %s: %w", dir, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{feedsBktName, settingsBktName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create top-level bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("make buckets: %w", err)
	}

	b := &Bolt{db: db}
	if err := b.seed(); err != nil {
		return nil, fmt.Errorf("seed default feeds: %w", err)
	}

	return b, nil
}

func (b *Bolt) seed() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(feedsBktName))
		if bkt.Stats().KeyN > 0 {
			return nil
		}

		for _, f := range defaultFeeds() {
			bts, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("marshal feed: %w", err)
			}
			if err := bkt.Put([]byte(f.ID), bts); err != nil {
				return fmt.Errorf("put feed %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

func defaultFeeds() []Feed {
	now := time.Now()
	return []Feed{
		{ID: "bbc-world", Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml",
			Category: "World", Enabled: true, Default: true, UpdatedAt: now},
		{ID: "the-verge", Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml",
			Category: "Tech", Enabled: true, Default: true, UpdatedAt: now},
		{ID: "hacker-news", Name: "Hacker News", URL: "https://news.ycombinator.com/rss",
			Category: "Tech", Enabled: true, Default: true, UpdatedAt: now},
	}
}

// List returns all feeds from storage.
func (b *Bolt) List(context.Context) ([]Feed, error) {
	var result []Feed
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(feedsBktName))
		err := bkt.ForEach(func(k, v []byte) error {
			var f Feed
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("unmarshal feed %s: %w", k, err)
			}
			result = append(result, f)
			return nil
		})
		if err != nil {
			return fmt.Errorf("foreach: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("view storage: %w", err)
	}
	return result, nil
}

// Enabled returns the currently enabled feeds.
func (b *Bolt) Enabled(ctx context.Context) ([]Feed, error) {
	feeds, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(feeds, func(f Feed, _ int) bool { return f.Enabled }), nil
}

// Get returns feed from storage.
func (b *Bolt) Get(_ context.Context, id string) (f Feed, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(feedsBktName))

		bts := bkt.Get([]byte(id))
		if bts == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(bts, &f); err != nil {
			return fmt.Errorf("unmarshal feed: %w", err)
		}

		return nil
	})
	if err != nil {
		return Feed{}, fmt.Errorf("view storage: %w", err)
	}

	return f, nil
}

// Put puts feed to storage.
func (b *Bolt) Put(_ context.Context, f Feed) error {
	f.UpdatedAt = time.Now()
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(feedsBktName))

		bts, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal feed: %w", err)
		}

		if err := bkt.Put([]byte(f.ID), bts); err != nil {
			return fmt.Errorf("put feed to storage: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	b.notify()
	return nil
}

// Delete removes feed from storage.
func (b *Bolt) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(feedsBktName))

		if err := bkt.Delete([]byte(id)); err != nil {
			return fmt.Errorf("remove: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	b.notify()
	return nil
}

// SetEnabled flips the enabled flag of the feed with the given id.
func (b *Bolt) SetEnabled(ctx context.Context, id string, enabled bool) error {
	f, err := b.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get feed: %w", err)
	}

	f.Enabled = enabled
	if err := b.Put(ctx, f); err != nil {
		return fmt.Errorf("put feed: %w", err)
	}

	return nil
}

// Settings returns persisted settings, or defaults if none were saved yet.
func (b *Bolt) Settings(context.Context) (s Settings, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		bts := tx.Bucket([]byte(settingsBktName)).Get(settingsKey)
		if bts == nil {
			s = DefaultSettings()
			return nil
		}
		if err := json.Unmarshal(bts, &s); err != nil {
			return fmt.Errorf("unmarshal settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return Settings{}, fmt.Errorf("view storage: %w", err)
	}
	return s, nil
}

// PutSettings persists settings.
func (b *Bolt) PutSettings(_ context.Context, s Settings) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bts, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		if err := tx.Bucket([]byte(settingsBktName)).Put(settingsKey, bts); err != nil {
			return fmt.Errorf("put settings to storage: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}
	return nil
}

// Watch returns a channel that receives a tick after every feed mutation
// and is closed when the storage closes. Notifications are dropped if the
// receiver is not keeping up.
func (b *Bolt) Watch() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	if b.closed {
		close(ch)
		return ch
	}

	b.watchers = append(b.watchers, ch)
	return ch
}

func (b *Bolt) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes the storage and releases all watchers.
func (b *Bolt) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, ch := range b.watchers {
			close(ch)
		}
		b.watchers = nil
	}
	b.mu.Unlock()

	return b.db.Close()
}
