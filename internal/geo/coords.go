package geo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// dms matches degrees with optional minutes and seconds, e.g. 34°36'12".
const dms = `(\d{1,3}(?:[.,]\d+)?)\s*°\s*` +
	`(?:(\d{1,2}(?:[.,]\d+)?)\s*['′’]\s*)?` +
	`(?:(\d{1,2}(?:[.,]\d+)?)\s*["″”]\s*)?`

// Latitude comes first. Transcriptions mix Latin and Cyrillic cardinals
// (С north, Ю south, В east, З west), and OCR often turns С into C.
var latLngPattern = regexp.MustCompile(`(?i)` + dms + `([NSCСЮ])` + `(?:[,.;]?\s+|\s*)` + dms + `([EWВЗ])`)

// Coordinates reads a position written on the label. It needs no network
// access and serves as a Geocoder on its own.
type Coordinates struct{}

// Geocode implements the enrich Geocoder interface.
func (Coordinates) Geocode(_ context.Context, text string) (Place, bool, error) {
	p, ok := ParseCoordinates(text)
	return p, ok, nil
}

// ParseCoordinates finds the first latitude/longitude pair in text. The
// place is named after the decimal position and Query holds the matched
// span.
func ParseCoordinates(text string) (Place, bool) {
	for _, m := range latLngPattern.FindAllStringSubmatchIndex(text, -1) {
		sub := func(i int) string {
			if m[2*i] < 0 {
				return ""
			}
			return text[m[2*i]:m[2*i+1]]
		}

		lat, ok := degrees(sub(1), sub(2), sub(3), 90)
		if !ok {
			continue
		}
		lng, ok := degrees(sub(5), sub(6), sub(7), 180)
		if !ok {
			continue
		}
		if south(sub(4)) {
			lat = -lat
		}
		if west(sub(8)) {
			lng = -lng
		}

		return Place{
			Name:  FormatLatLng(lat, lng),
			Lat:   lat,
			Lng:   lng,
			Query: text[m[0]:m[1]],
		}, true
	}
	return Place{}, false
}

// FormatLatLng renders a position as unsigned decimal degrees with cardinals.
func FormatLatLng(lat, lng float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns, lat = "S", -lat
	}
	if lng < 0 {
		ew, lng = "W", -lng
	}
	return fmt.Sprintf("%.4f°%s %.4f°%s", lat, ns, lng, ew)
}

func degrees(d, m, s string, limit float64) (float64, bool) {
	deg, ok := number(d)
	if !ok {
		return 0, false
	}
	var mins, secs float64
	if m != "" {
		if mins, ok = number(m); !ok || mins >= 60 {
			return 0, false
		}
	}
	if s != "" {
		if secs, ok = number(s); !ok || secs >= 60 {
			return 0, false
		}
	}
	v := deg + mins/60 + secs/3600
	if v > limit {
		return 0, false
	}
	return v, true
}

func number(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return v, err == nil
}

func south(cardinal string) bool {
	switch strings.ToUpper(cardinal) {
	case "S", "Ю":
		return true
	}
	return false
}

func west(cardinal string) bool {
	switch strings.ToUpper(cardinal) {
	case "W", "З":
		return true
	}
	return false
}
