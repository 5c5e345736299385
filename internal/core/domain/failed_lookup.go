package domain

import "time"

// FailedLookup records a merchant whose geocoding failed. These are not
// written to the relational store; they accumulate in memory during a run
// and are flushed to the side-channel sink at the end.
type FailedLookup struct {
	StoreName      string    `json:"store_name"`
	Address        string    `json:"address"`
	Category       string    `json:"category"`
	Phone          string    `json:"phone"`
	Distance       string    `json:"distance"`
	SearchAttempts string    `json:"search_attempts"`
	RegionInfo     string    `json:"region_info"`
	ErrorReason    string    `json:"error_reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// Key is the deduplication key used by the sink.
func (f *FailedLookup) Key() string {
	return f.StoreName + "|" + f.Address
}
