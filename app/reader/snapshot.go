// Package reader orchestrates feed aggregation, summarization and model
// import into a single published snapshot of user-facing state.
package reader

import "github.com/Simooonnnnn/Novascope-sub001/app/store"

// SummaryStatus is a phase of the summary pipeline.
type SummaryStatus int

// Summary pipeline phases.
const (
	SummaryNone SummaryStatus = iota
	SummaryLoading
	SummaryReady
	SummaryFailed
	SummaryNoModel
)

// SummaryState is the state of the summary pipeline for the selected article.
type SummaryState struct {
	Status SummaryStatus
	Text   string
	Error  string
}

// ImportStatus is a phase of the model import pipeline.
type ImportStatus int

// Import pipeline phases.
const (
	ImportIdle ImportStatus = iota
	ImportRunning
	ImportDone
	ImportFailed
)

// ImportState is the state of the model import pipeline.
type ImportState struct {
	Status   ImportStatus
	Progress int
	Error    string
}

// Snapshot is a whole-value snapshot of user-facing state. Snapshots are
// immutable: every mutation derives a new one and replaces the published
// value atomically.
type Snapshot struct {
	Loading    bool
	Refreshing bool
	Articles   []store.Article
	Bookmarked []store.Article
	Error      string
	Selected   *store.Article
	Summary    SummaryState
	Import     ImportState
}
