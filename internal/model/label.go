package model

import (
	"strings"

	"github.com/ppiankov/labelsort/internal/daterange"
)

// Label is one transcript of a physical specimen label. The structured
// fields are optional: nil means the value was never extracted.
type Label struct {
	ID        string           `json:"ID"`
	Text      string           `json:"text"`
	DateRange *daterange.Range `json:"date_range,omitempty"`
	Collector *string          `json:"collector,omitempty"`
	Location  *string          `json:"location,omitempty"`

	// Verbatim is the label text each extracted field was read from.
	Verbatim *Verbatim `json:"verbatim,omitempty"`
}

// Verbatim holds the source spans of extracted fields. Empty means the
// field was given, not extracted.
type Verbatim struct {
	Date      string `json:"date,omitempty"`
	Collector string `json:"collector,omitempty"`
	Geo       string `json:"geo,omitempty"`
}

// HasStructuredFields reports whether any optional field is present.
func (l Label) HasStructuredFields() bool {
	return l.DateRange != nil || l.Collector != nil || l.Location != nil
}

// IsBlank reports whether the label carries no usable text.
func (l Label) IsBlank() bool {
	return strings.TrimSpace(l.Text) == ""
}

// CollectingEvent is a reference catalog entry.
type CollectingEvent struct {
	ID        string `json:"ID"`
	Location  string `json:"location"`
	Date      string `json:"date"`
	Collector string `json:"collector"`
	Text      string `json:"text"`

	// DateRange is parsed from Date during enrichment.
	DateRange *daterange.Range `json:"-"`
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
