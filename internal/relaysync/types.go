package relaysync

import "time"

type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ThreadPage struct {
	Threads []Thread `json:"threads"`
	HasMore bool     `json:"hasMore"`
}

type Citation struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type Entry struct {
	Query   string     `json:"query"`
	Answer  string     `json:"answer"`
	Sources []Citation `json:"sources,omitempty"`
}

type ThreadDetail struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

type ExportRecord struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	ExportedAt  time.Time `json:"exportedAt"`
}

type SyncJob struct {
	JobID       string    `json:"jobId"`
	SelectedIDs []string  `json:"selectedIds"`
	Cursor      int       `json:"cursor"`
	Success     int       `json:"success"`
	Failed      int       `json:"failed"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

type FailureRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusSyncing ItemStatus = "syncing"
	StatusSynced  ItemStatus = "synced"
	StatusSkipped ItemStatus = "skipped"
	StatusFailed  ItemStatus = "failed"
)

type ItemResult struct {
	ID     string     `json:"id"`
	Title  string     `json:"title,omitempty"`
	Status ItemStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
	URL    string     `json:"url,omitempty"`
}

type SyncSummary struct {
	JobID   string       `json:"jobId"`
	Total   int          `json:"total"`
	Success int          `json:"success"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Items   []ItemResult `json:"items"`
}
