package atlas

import "testing"

func TestQualifyAllCrossProduct(t *testing.T) {
	box := NewBoundingBox("s", [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	inside := NewPoint("s", 5, 5, 5)
	outside := NewPoint("s", 20, 20, 20)

	matches, err := QualifyAll([]Location{box}, []Location{inside, outside}, MatchOptions{})
	if err != nil {
		t.Fatalf("QualifyAll error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Qualification != Contains {
		t.Errorf("got %v, want CONTAINS", matches[0].Qualification)
	}
}

func TestQualifyAllSkipsInvalidPairs(t *testing.T) {
	// Collections spanning multiple reference spaces: the pair with no known
	// transform yields no match but must not abort enumeration.
	boxFoo := NewBoundingBox("foo", [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	boxBar := NewBoundingBox("bar", [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	ptFoo := NewPoint("foo", 5, 5, 5)

	matches, err := QualifyAll([]Location{boxFoo, boxBar}, []Location{ptFoo}, MatchOptions{})
	if err != nil {
		t.Fatalf("QualifyAll error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (bar pair skipped)", len(matches))
	}
	if matches[0].A != Location(boxFoo) {
		t.Errorf("match A = %v, want the foo box", matches[0].A)
	}
}

func TestQualifyAllPropagatesUnregistered(t *testing.T) {
	colA := []Location{NewPoint("s", 0, 0, 0), meshLoc{space: "s"}}
	colB := []Location{NewPoint("s", 0, 0, 0)}

	_, err := QualifyAll(colA, colB, MatchOptions{})
	if !IsUnregisteredComparison(err) {
		t.Errorf("got err %v, want UnregisteredComparisonError", err)
	}
}

func TestMatchAnyShortCircuits(t *testing.T) {
	box := NewBoundingBox("s", [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	pt := NewPoint("s", 5, 5, 5)

	ok, err := MatchAny([]Location{box}, []Location{pt}, MatchOptions{})
	if err != nil {
		t.Fatalf("MatchAny error: %v", err)
	}
	if !ok {
		t.Error("MatchAny = false, want true")
	}

	far := NewPoint("s", 99, 99, 99)
	ok, err = MatchAny([]Location{box}, []Location{far}, MatchOptions{})
	if err != nil {
		t.Fatalf("MatchAny error: %v", err)
	}
	if ok {
		t.Error("MatchAny = true, want false")
	}
}

func TestEachQualificationOrder(t *testing.T) {
	// Enumeration is A outer, B inner; early stop respects that order.
	a1 := NewBoundingBox("s", [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	a2 := NewBoundingBox("s", [3]float64{0, 0, 0}, [3]float64{20, 20, 20})
	b1 := NewPoint("s", 1, 1, 1)
	b2 := NewPoint("s", 2, 2, 2)

	var seen []Match
	err := EachQualification([]Location{a1, a2}, []Location{b1, b2}, MatchOptions{}, func(m Match) bool {
		seen = append(seen, m)
		return len(seen) < 3
	})
	if err != nil {
		t.Fatalf("EachQualification error: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("got %d matches, want 3 (early stop)", len(seen))
	}
	if seen[0].A != Location(a1) || seen[0].B != Location(b1) {
		t.Errorf("first match = (%v, %v), want (a1, b1)", seen[0].A, seen[0].B)
	}
	if seen[1].A != Location(a1) || seen[1].B != Location(b2) {
		t.Errorf("second match = (%v, %v), want (a1, b2)", seen[1].A, seen[1].B)
	}
	if seen[2].A != Location(a2) || seen[2].B != Location(b1) {
		t.Errorf("third match = (%v, %v), want (a2, b1)", seen[2].A, seen[2].B)
	}
}
