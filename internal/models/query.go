package models

// QueryOptions narrow a similarity query. Filters combine with AND
// semantics; zero values mean "no filter".
type QueryOptions struct {
	Limit      int
	Subject    string
	Grade      string
	MinQuality float64
}
