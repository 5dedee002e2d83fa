package scheduling

// Interval is a half-open [StartMin, EndMin) range in clinic-local minutes
// since midnight. Touching endpoints do not conflict.
type Interval struct {
	StartMin int
	EndMin   int
}

// NewInterval builds an interval from a start offset and duration.
func NewInterval(startMin, durationMin int) Interval {
	return Interval{StartMin: startMin, EndMin: startMin + durationMin}
}

// Overlaps reports whether two half-open intervals intersect.
func (a Interval) Overlaps(b Interval) bool {
	return a.StartMin < b.EndMin && a.EndMin > b.StartMin
}

// Within reports whether a lies entirely inside the envelope b. An interval
// ending exactly at the envelope end is inside.
func (a Interval) Within(b Interval) bool {
	return a.StartMin >= b.StartMin && a.EndMin <= b.EndMin
}

// overlapsAny reports whether the candidate intersects any interval in the
// list.
func overlapsAny(candidate Interval, others []Interval) bool {
	for _, other := range others {
		if candidate.Overlaps(other) {
			return true
		}
	}
	return false
}
