package geo

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/labelsort/internal/similarity"
)

// featureRank orders GeoNames feature classes from the broadest (administrative
// areas) to the most local (spots and buildings).
var featureRank = map[string]int{
	"A": 0, // country, state, region
	"P": 1, // city, village
	"H": 2, // stream, lake
	"L": 3, // park, area
	"T": 4, // mountain, hill, rock
	"U": 5, // undersea
	"V": 6, // forest, heath
	"R": 7, // road, railroad
	"S": 8, // spot, building, farm
}

func rank(p Place) int {
	if r, ok := featureRank[p.FeatureClass]; ok {
		return r
	}
	return len(featureRank)
}

const noCountry = ""

// Geocode searches n-grams of the label words, longest first, and stops at
// the first length that yields any hit. Among those hits the country group
// holding the broadest feature wins, and its most local place is returned.
// With Options.Coordinates set, a position written on the label wins and no
// request is made.
func (c *Client) Geocode(ctx context.Context, text string) (Place, bool, error) {
	if c.opts.Coordinates {
		if p, ok := ParseCoordinates(text); ok {
			return p, true, nil
		}
	}

	words := Words(text)
	longest := c.opts.MaxNGram
	if longest > len(words) {
		longest = len(words)
	}

	for n := longest; n > 0; n-- {
		var hits []Place
		seen := make(map[int]bool)
		for i := 0; i+n <= len(words); i++ {
			p, err := c.Search(ctx, strings.Join(words[i:i+n], " "))
			if err != nil {
				return Place{}, false, err
			}
			if p == nil || seen[p.GeonameID] {
				continue
			}
			seen[p.GeonameID] = true
			hits = append(hits, *p)
		}
		if len(hits) > 0 {
			return Best(hits), true, nil
		}
	}
	return Place{}, false, nil
}

// Best picks one place among hits of the same n-gram length.
func Best(hits []Place) Place {
	groups := make(map[string][]Place)
	for _, h := range hits {
		groups[h.CountryCode] = append(groups[h.CountryCode], h)
	}
	for code := range groups {
		g := groups[code]
		sort.SliceStable(g, func(i, j int) bool { return rank(g[i]) < rank(g[j]) })
	}

	if len(groups) > 1 {
		delete(groups, noCountry)
	}

	codes := make([]string, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		ri, rj := rank(groups[codes[i]][0]), rank(groups[codes[j]][0])
		if ri != rj {
			return ri < rj
		}
		return codes[i] < codes[j]
	})

	g := groups[codes[0]]
	return g[len(g)-1]
}

// Words extracts the folded alphabetic words of at least three letters used
// to build gazetteer queries.
func Words(text string) []string {
	fields := strings.FieldsFunc(similarity.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
