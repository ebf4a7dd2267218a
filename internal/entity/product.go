package domain

// Product is the slice of the catalog the settlement engine needs: pricing at
// checkout and stock reservation on payment. The catalog CRUD surface lives
// elsewhere.
type Product struct {
	ID        string
	Title     string
	PriceSats uint64
	Stock     int
}
