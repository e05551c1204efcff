package model

import "strings"

// Collector is a person or institution from the collector catalog.
type Collector struct {
	ID        string                 `json:"ID"`
	Name      string                 `json:"name"`
	Firstname string                 `json:"firstname,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Format renders the collector name. Verbs:
//
//	{f}   initials of the first name(s)
//	{f}.  initials with dots
//	{F}   full first name
//	{N}   surname
func (c Collector) Format(format string) string {
	initials, dotted := "", ""
	if c.Firstname != "" {
		initials = abbreviate(c.Firstname, false)
		dotted = abbreviate(c.Firstname, true)
	}
	r := strings.NewReplacer("{f}.", dotted, "{f}", initials, "{F}", c.Firstname, "{N}", c.Name)
	return strings.TrimSpace(r.Replace(format))
}

// Text is the display form "{F} {N}".
func (c Collector) Text() string {
	return c.Format("{F} {N}")
}

// AllFormats lists every rendering a label may use, surname first.
func (c Collector) AllFormats() []string {
	formats := []string{c.Format("{N}")}
	if c.Firstname == "" {
		return formats
	}
	for _, first := range []string{"{f}", "{f}.", "{F}"} {
		formats = append(formats, c.Format(first+" {N}"), c.Format("{N} "+first))
	}
	return formats
}

// abbreviate keeps the first letter of each part of a given name, preserving
// hyphens: "Jean-Paul Marie" becomes "J-P M" or "J.-P. M.".
func abbreviate(name string, dots bool) string {
	dot := ""
	if dots {
		dot = "."
	}

	var b strings.Builder
	for i, word := range strings.Fields(name) {
		if i > 0 {
			b.WriteByte(' ')
		}
		for j, part := range strings.Split(word, "-") {
			if j > 0 {
				b.WriteByte('-')
			}
			if part == "" {
				continue
			}
			b.WriteString(strings.ToUpper(string([]rune(part)[0])))
			b.WriteString(dot)
		}
	}
	return b.String()
}
