package daterange

import (
	"encoding/json"
	"fmt"
)

// Range is an inclusive date interval. An unknown bound leaves that side
// of the interval open.
type Range struct {
	Earliest Date
	Latest   Date
}

// New builds a range and rejects one whose known bounds are inverted.
func New(earliest, latest Date) (Range, error) {
	if earliest.IsKnown() && latest.IsKnown() && compare(earliest, latest) > 0 {
		return Range{}, fmt.Errorf("invalid date range: %s after %s", earliest, latest)
	}
	return Range{Earliest: earliest, Latest: latest}, nil
}

// Single returns the range covering exactly d.
func Single(d Date) Range {
	return Range{Earliest: d, Latest: d}
}

// IsKnown reports whether at least one bound is known.
func (r Range) IsKnown() bool {
	return r.Earliest.IsKnown() || r.Latest.IsKnown()
}

// Overlaps reports whether r and other can describe the same moment.
// Bounds are compared at their common precision, so 1905 overlaps
// 12.03.1905, and a two-digit year is read in the century of the side that
// knows it.
func (r Range) Overlaps(other Range) bool {
	return !before(r.Latest, other.Earliest) && !before(other.Latest, r.Earliest)
}

// Equal reports whether both bounds are identical.
func (r Range) Equal(other Range) bool {
	return r.Earliest == other.Earliest && r.Latest == other.Latest
}

func before(a, b Date) bool {
	return a.IsKnown() && b.IsKnown() && compare(a, b) < 0
}

// String renders "earliest/latest", or a single date when both bounds agree.
func (r Range) String() string {
	if r.Earliest == r.Latest {
		return r.Earliest.String()
	}
	return r.Earliest.String() + "/" + r.Latest.String()
}

type rangeJSON struct {
	Earliest string  `json:"earliest"`
	Latest   string  `json:"latest"`
	Dates    [2]Date `json:"bounds"`
}

// MarshalJSON writes both the rendered bounds and their structured form.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(rangeJSON{
		Earliest: r.Earliest.String(),
		Latest:   r.Latest.String(),
		Dates:    [2]Date{r.Earliest, r.Latest},
	})
}

// UnmarshalJSON reads the structured bounds written by MarshalJSON.
func (r *Range) UnmarshalJSON(data []byte) error {
	var raw rangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Earliest, r.Latest = raw.Dates[0], raw.Dates[1]
	return nil
}
