package domain

// Store is one persisted merchant. The (Name, Address, RegionID) triple is
// the deduplication key; callers must check existence before inserting.
type Store struct {
	ID           int64
	Name         string
	Address      string
	Latitude     *float64
	Longitude    *float64
	CategoryID   int64
	RegionID     int64
	CategoryName string // raw category label as shown by the widget
	IsFranchise  bool
	BusinessDays string
	OpeningHours string
	AnnualSales  *int64
}

// HasCoordinates reports whether both coordinates are present.
func (s *Store) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}
