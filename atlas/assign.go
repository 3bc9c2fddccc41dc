package atlas

// Match is one qualifying pair produced by the assignment engine.
type Match struct {
	A             Location      `json:"a"`
	B             Location      `json:"b"`
	Qualification Qualification `json:"qualification"`
}

// EachQualification enumerates the cross product of two location collections
// in fixed order (A outer, B inner), qualifying every pair and invoking yield
// for each qualifying one. Enumeration stops early when yield returns false.
//
// Pairs failing with InvalidComparisonError (different reference spaces) are
// skipped, so collections spanning multiple spaces can be compared without
// per-call space guards. An UnregisteredComparisonError aborts enumeration
// and propagates: a missing comparator is a gap to fix, not data to skip.
func (r *ComparatorRegistry) EachQualification(colA, colB []Location, opts MatchOptions, yield func(Match) bool) error {
	for _, a := range colA {
		for _, b := range colB {
			q, err := r.Qualify(a, b, opts)
			if err != nil {
				if IsInvalidComparison(err) {
					continue
				}
				return err
			}
			if q == None {
				continue
			}
			if !yield(Match{A: a, B: b, Qualification: q}) {
				return nil
			}
		}
	}
	return nil
}

// QualifyAll collects every qualifying pair of the A x B cross product.
func (r *ComparatorRegistry) QualifyAll(colA, colB []Location, opts MatchOptions) ([]Match, error) {
	var matches []Match
	err := r.EachQualification(colA, colB, opts, func(m Match) bool {
		matches = append(matches, m)
		return true
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// MatchAny reports whether any pair of the two collections qualifies,
// short-circuiting on the first qualifying pair in canonical A x B order.
func (r *ComparatorRegistry) MatchAny(colA, colB []Location, opts MatchOptions) (bool, error) {
	found := false
	err := r.EachQualification(colA, colB, opts, func(Match) bool {
		found = true
		return false
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// EachQualification enumerates qualifying pairs using the builtin operators.
func EachQualification(colA, colB []Location, opts MatchOptions, yield func(Match) bool) error {
	return defaultRegistry.EachQualification(colA, colB, opts, yield)
}

// QualifyAll collects qualifying pairs using the builtin operators.
func QualifyAll(colA, colB []Location, opts MatchOptions) ([]Match, error) {
	return defaultRegistry.QualifyAll(colA, colB, opts)
}

// MatchAny reports whether any pair qualifies using the builtin operators.
func MatchAny(colA, colB []Location, opts MatchOptions) (bool, error) {
	return defaultRegistry.MatchAny(colA, colB, opts)
}
