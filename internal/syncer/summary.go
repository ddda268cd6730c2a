package syncer

import (
	"fmt"
	"time"
)

// Failure records one unit of work that did not complete.
type Failure struct {
	// Ref names the unit: a transaction number, "products page 3",
	// "category Minuman".
	Ref      string `json:"ref"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// refOf names a transaction for a Failure; legacy rows may lack a number.
func refOf(number string, id int64) string {
	if number != "" {
		return number
	}
	return fmt.Sprintf("transaction #%d", id)
}

// UploadSummary reports an upload pass.
//
// Created and Updated count the remote's answers. Synced counts rows marked
// synced locally; a row whose status changed while its upload was in
// flight is acknowledged remotely but counted in Stale and stays queued.
type UploadSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Synced    int           `json:"synced"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Stale     int           `json:"stale"`
	Repaired  int           `json:"repaired"`
	Aborted   bool          `json:"aborted"`
	Failures  []Failure     `json:"failures,omitempty"`
	Skips     []Failure     `json:"skips,omitempty"`
}

// OK reports whether every queued row was uploaded.
func (s UploadSummary) OK() bool {
	return s.Failed == 0 && !s.Aborted
}

// DownloadOptions selects optional download work.
type DownloadOptions struct {
	// History imports remote transactions missing locally. Intended for
	// provisioning a new device.
	History bool
}

// DownloadSummary reports a download pass.
type DownloadSummary struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	CategoriesPushed int           `json:"categories_pushed"`
	CategoriesMerged int           `json:"categories_merged"`
	ProductsInserted int           `json:"products_inserted"`
	ProductsUpdated  int           `json:"products_updated"`
	Pages            int           `json:"pages"`
	PageLimitReached bool          `json:"page_limit_reached"`
	HistoryImported  int           `json:"history_imported"`
	HistoryExisting  int           `json:"history_existing"`
	Failed           int           `json:"failed"`
	Aborted          bool          `json:"aborted"`
	Failures         []Failure     `json:"failures,omitempty"`
}

// OK reports whether the pass completed without failures.
func (s DownloadSummary) OK() bool {
	return s.Failed == 0 && !s.Aborted
}

// Summary reports a full Sync.
type Summary struct {
	Upload   UploadSummary   `json:"upload"`
	Download DownloadSummary `json:"download"`
}

// OK reports whether both passes succeeded.
func (s Summary) OK() bool {
	return s.Upload.OK() && s.Download.OK()
}
