package types

// Change is one item reported by a source's delta listing.
type Change struct {
	SourceID   string `json:"source_id"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Deleted    bool   `json:"deleted"`
	ModifiedAt int64  `json:"modified_at"`
}

// ChangePage is one page of a source's change stream. Cursor is the
// position after this page; it is only safe to persist once every change
// in the page has been applied.
type ChangePage struct {
	Changes []Change `json:"changes"`
	Cursor  string   `json:"cursor"`
	HasMore bool     `json:"has_more"`
}

// SyncResult summarizes one sync run for a source.
type SyncResult struct {
	Source     string `json:"source"`
	Cursor     string `json:"cursor"`
	Upserted   int    `json:"upserted"`
	Skipped    int    `json:"skipped"`
	Deleted    int    `json:"deleted"`
	DurationMs int64  `json:"duration_ms"`
}

// SyncStatus is the operator-facing view of a source's sync state.
type SyncStatus struct {
	Source    string `json:"source"`
	Running   bool   `json:"running"`
	Processed int    `json:"processed"`
	LastError string `json:"last_error,omitempty"`
}
