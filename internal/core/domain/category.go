package domain

// Category is a merchant category. Name is unique; Code is the upper-cased
// normal form of Name.
type Category struct {
	ID   int64
	Code string
	Name string
}
