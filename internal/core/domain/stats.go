package domain

// BatchStats counts the outcomes of persisting one batch of listings.
type BatchStats struct {
	Saved            int `json:"saved"`
	Skipped          int `json:"skipped"`
	Duplicates       int `json:"duplicates"`
	PrimarySuccess   int `json:"primary_success"`
	SecondarySuccess int `json:"secondary_success"`
	APIFailed        int `json:"api_failed"`
	Errors           int `json:"errors"`
}

// Add folds another batch into this one.
func (b *BatchStats) Add(o BatchStats) {
	b.Saved += o.Saved
	b.Skipped += o.Skipped
	b.Duplicates += o.Duplicates
	b.PrimarySuccess += o.PrimarySuccess
	b.SecondarySuccess += o.SecondarySuccess
	b.APIFailed += o.APIFailed
	b.Errors += o.Errors
}

// RunStats is the aggregate returned at the end of a traversal. A run always
// produces one, even after partial failure.
type RunStats struct {
	RegionsCrawled   int `json:"regions_crawled"`
	TotalFound       int `json:"total_stores_found"`
	TotalSaved       int `json:"total_stores_saved"`
	PrimarySuccess   int `json:"provider_primary_success"`
	SecondarySuccess int `json:"provider_secondary_success"`
	APIFailed        int `json:"api_failed"`
	Duplicates       int `json:"duplicates"`
	Errors           int `json:"errors"`
	RecoveryAttempts int `json:"recovery_attempts"`
}

// AddBatch folds per-batch persistence counters into the run totals.
func (r *RunStats) AddBatch(b BatchStats) {
	r.TotalSaved += b.Saved
	r.PrimarySuccess += b.PrimarySuccess
	r.SecondarySuccess += b.SecondarySuccess
	r.APIFailed += b.APIFailed
	r.Duplicates += b.Duplicates
	r.Errors += b.Errors
}
