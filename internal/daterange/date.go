// Package daterange models partially known dates and date ranges as they
// appear on specimen labels: a bound may be known to the day, the month, the
// year, or not at all, and two-digit years leave the century open.
package daterange

import (
	"fmt"
	"strconv"
)

// Precision is the finest field of a Date that is known.
type Precision int

const (
	Unknown Precision = iota
	Year
	Month
	Day
)

// String returns the precision name used in reports.
func (p Precision) String() string {
	switch p {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// Date is a calendar date known up to Precision. When CenturyKnown is false
// Year holds only the last two digits.
type Date struct {
	Year         int       `json:"year,omitempty"`
	Month        int       `json:"month,omitempty"`
	Day          int       `json:"day,omitempty"`
	Precision    Precision `json:"precision"`
	CenturyKnown bool      `json:"century_known"`
}

// YearOnly returns a year-precision date.
func YearOnly(year int) Date {
	return Date{Year: year, Precision: Year, CenturyKnown: true}
}

// YearMonth returns a month-precision date.
func YearMonth(year, month int) Date {
	return Date{Year: year, Month: month, Precision: Month, CenturyKnown: true}
}

// YearMonthDay returns a day-precision date.
func YearMonthDay(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day, Precision: Day, CenturyKnown: true}
}

// IsKnown reports whether at least the year is known.
func (d Date) IsKnown() bool {
	return d.Precision > Unknown
}

// String renders the date as yyyy, yyyy-mm or yyyy-mm-dd. Years with an
// unknown century render as 'yy.
func (d Date) String() string {
	if !d.IsKnown() {
		return "?"
	}
	year := strconv.Itoa(d.Year)
	if !d.CenturyKnown {
		year = fmt.Sprintf("'%02d", d.Year%100)
	}
	switch d.Precision {
	case Month:
		return fmt.Sprintf("%s-%02d", year, d.Month)
	case Day:
		return fmt.Sprintf("%s-%02d-%02d", year, d.Month, d.Day)
	default:
		return year
	}
}

// compare orders a and b at the coarser of their two precisions. Unknown
// dates compare equal to everything.
func compare(a, b Date) int {
	p := min(a.Precision, b.Precision)
	if p == Unknown {
		return 0
	}

	ya, yb := a.Year, b.Year
	switch {
	case a.CenturyKnown && !b.CenturyKnown:
		yb = sameCentury(a.Year, b.Year)
	case !a.CenturyKnown && b.CenturyKnown:
		ya = sameCentury(b.Year, a.Year)
	}

	if c := cmpInt(ya, yb); c != 0 || p == Year {
		return c
	}
	if c := cmpInt(a.Month, b.Month); c != 0 || p == Month {
		return c
	}
	return cmpInt(a.Day, b.Day)
}

// sameCentury projects a two-digit year into the century of ref.
func sameCentury(ref, twoDigit int) int {
	return ref - ref%100 + twoDigit%100
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
