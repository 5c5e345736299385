// Package geocode resolves merchant (name, category, address) tuples to
// validated coordinates using two competing providers with query-narrowing
// and address-consistency validation.
package geocode

import "context"

// Result is one geocoding provider answer. LotAddress is authoritative for
// validation, RoadAddress for storage.
type Result struct {
	Found       bool
	Latitude    float64
	Longitude   float64
	PlaceName   string
	LotAddress  string
	RoadAddress string
}

// FinalAddress returns the address to persist: road address when present,
// otherwise the lot address.
func (r Result) FinalAddress() string {
	if r.RoadAddress != "" {
		return r.RoadAddress
	}
	return r.LotAddress
}

// CompareAddress returns the address to validate against: lot address when
// present, otherwise the road address.
func (r Result) CompareAddress() string {
	if r.LotAddress != "" {
		return r.LotAddress
	}
	return r.RoadAddress
}

// Provider is a single geocoding backend. Implementations perform one HTTP
// GET per call and block for a fixed rate-limit delay after the call
// returns, success or failure. Transport errors are reported alongside a
// not-found Result and are never retried here.
type Provider interface {
	Name() string
	QueryByKeyword(ctx context.Context, query string) (Result, error)
	QueryByAddress(ctx context.Context, addr string) (Result, error)
}
