// Package store contains entities and services to process and contain them.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is an error that is returned when the requested entity is not found.
var ErrNotFound = errors.New("not found")

// Interface defines methods for the feed store.
type Interface interface {
	List(ctx context.Context) ([]Feed, error)
	Enabled(ctx context.Context) ([]Feed, error)
	Get(ctx context.Context, id string) (Feed, error)
	Put(ctx context.Context, f Feed) error
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Settings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, s Settings) error
	Watch() <-chan struct{}
	Close() error
}

// Feed is a single feed subscription.
type Feed struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Category  string    `json:"category"`
	Enabled   bool      `json:"enabled"`
	Default   bool      `json:"default"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Article is a single entry of a feed. Articles are rebuilt on every
// aggregation cycle and are never persisted.
type Article struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url"`
	Source     string    `json:"source"`
	Published  time.Time `json:"published"`
	Bookmarked bool      `json:"bookmarked"`
	Lead       bool      `json:"lead"`
	FeedID     string    `json:"feed_id"`
}

// Settings contains user-tunable application settings.
type Settings struct {
	SummaryWords int           `json:"summary_words"`
	FetchTimeout time.Duration `json:"fetch_timeout"`
}

// DefaultSettings returns settings used until the user changes them.
func DefaultSettings() Settings {
	return Settings{SummaryWords: 60, FetchTimeout: 15 * time.Second}
}
