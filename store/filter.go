package store

import "strings"

// LinkFilter is the client-supplied filter tree for link queries.
// Leaves carry substring conditions; OR branches nest recursively.
type LinkFilter struct {
	OR                  []*LinkFilter
	DescriptionContains *string
	URLContains         *string
}

// Clause is one flattened leaf of a filter tree. Both conditions apply
// when both are set (AND within a leaf).
type Clause struct {
	DescriptionContains string
	URLContains         string
}

// Match reports whether the link satisfies this clause
func (c Clause) Match(l *Link) bool {
	if c.DescriptionContains != "" && !strings.Contains(l.Description, c.DescriptionContains) {
		return false
	}
	if c.URLContains != "" && !strings.Contains(l.URL, c.URLContains) {
		return false
	}
	return true
}

// Flatten recursively flattens a filter tree into a disjunction of leaf
// clauses. A nil or empty filter flattens to no clauses, which matches
// everything.
func Flatten(f *LinkFilter) []Clause {
	if f == nil {
		return nil
	}

	var clauses []Clause
	leaf := Clause{}
	if f.DescriptionContains != nil {
		leaf.DescriptionContains = *f.DescriptionContains
	}
	if f.URLContains != nil {
		leaf.URLContains = *f.URLContains
	}
	if leaf.DescriptionContains != "" || leaf.URLContains != "" {
		clauses = append(clauses, leaf)
	}

	for _, or := range f.OR {
		clauses = append(clauses, Flatten(or)...)
	}
	return clauses
}

// MatchLink evaluates the flattened disjunction against a link. No
// clauses means match-all.
func MatchLink(clauses []Clause, l *Link) bool {
	if len(clauses) == 0 {
		return true
	}
	for _, c := range clauses {
		if c.Match(l) {
			return true
		}
	}
	return false
}
