package domain

import "strings"

// Region is one node of the Korean administrative hierarchy
// (si/do, si-gun-gu, optional eup/myeon/dong). Identity for lookup is the
// (Province, City, Town) triple; Code is a generated token, not a natural key.
type Region struct {
	ID       int64
	Province string
	City     string
	Town     string // empty when the region is city-level
	Code     string
}

// FullName returns "province city [town]" for logging and reports.
func (r *Region) FullName() string {
	parts := []string{r.Province, r.City}
	if r.Town != "" {
		parts = append(parts, r.Town)
	}
	return strings.Join(parts, " ")
}
