package core

// DBOrdering is a single-field ordering applied to a collection query.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ByDateDesc is the default ordering of every date-bearing collection.
var ByDateDesc = DBOrdering{Field: "date"}

// QueryOptions carries the uniform list-query knobs shared by every
// collection: single-field ordering and a post-order limit (0 = no limit).
type QueryOptions struct {
	Ordering []DBOrdering
	Limit    int
}
