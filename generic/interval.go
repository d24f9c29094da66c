package generic

// =============================================================================
// INTERVAL - Half-open integer range arithmetic
// =============================================================================

// Interval is the half-open range [Start, End). Units are up to the caller;
// the billing engine uses seconds since midnight. An interval with
// End <= Start is empty.
type Interval struct {
	Start int
	End   int
}

// ClockInterval builds an Interval over two clock times.
func ClockInterval(from, to ClockTime) Interval {
	return Interval{Start: from.Seconds(), End: to.Seconds()}
}

// IsEmpty reports whether the interval has no length.
func (i Interval) IsEmpty() bool { return i.End <= i.Start }

// Length returns End-Start, or zero for empty and inverted intervals.
func (i Interval) Length() int {
	if i.IsEmpty() {
		return 0
	}
	return i.End - i.Start
}

// Overlaps reports whether the two intervals share any point.
func (i Interval) Overlaps(other Interval) bool {
	if i.IsEmpty() || other.IsEmpty() {
		return false
	}
	return other.Start < i.End && other.End > i.Start
}

// Subtract removes other from i and returns what is left:
//   - nothing when other covers i entirely
//   - i unchanged when they are disjoint
//   - one truncated piece when other overlaps an edge
//   - two pieces when other sits strictly inside i
func (i Interval) Subtract(other Interval) []Interval {
	if i.IsEmpty() {
		return nil
	}
	if !i.Overlaps(other) {
		return []Interval{i}
	}
	var out []Interval
	if other.Start > i.Start {
		out = append(out, Interval{Start: i.Start, End: other.Start})
	}
	if other.End < i.End {
		out = append(out, Interval{Start: other.End, End: i.End})
	}
	return out
}

// SubtractAll removes every exclusion from every range. Empty inputs are
// dropped; the output never contains empty intervals.
func SubtractAll(ranges, exclusions []Interval) []Interval {
	remaining := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsEmpty() {
			remaining = append(remaining, r)
		}
	}
	for _, ex := range exclusions {
		if ex.IsEmpty() {
			continue
		}
		next := make([]Interval, 0, len(remaining)+1)
		for _, r := range remaining {
			next = append(next, r.Subtract(ex)...)
		}
		remaining = next
	}
	return remaining
}

// TotalLength sums the lengths of the intervals.
func TotalLength(intervals []Interval) int {
	total := 0
	for _, i := range intervals {
		total += i.Length()
	}
	return total
}
