package domain

// Listing is one raw merchant record as extracted from the map widget,
// before geocoding and persistence.
type Listing struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Category string `json:"category"`
	Phone    string `json:"phone"`
	Distance string `json:"distance"`
}

// RegionOption is one selectable node of the widget's region filter.
// Provinces and districts are addressed by value, dongs by position.
type RegionOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Index int    `json:"index"`
}
