package core

import "strings"

// DBOrdering is one `ORDER BY` term requested by a client.
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

// OrderByClause renders orderings whose field is a key of `columns` (json name -> column name).
// Unknown fields are dropped. Returns "" when nothing is left.
func OrderByClause(orderings []DBOrdering, columns map[string]string) string {
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		terms = append(terms, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	return strings.Join(terms, ", ")
}
