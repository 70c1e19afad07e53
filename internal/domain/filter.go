package domain

// FilterCriteria holds the operator-configured predicate parameters. Set
// members are normalised: categories and keywords lowercase, sides uppercase.
type FilterCriteria struct {
	MinUSDC    float64
	Categories map[string]struct{}
	Keywords   []string
	CopySides  map[Side]struct{}
}
