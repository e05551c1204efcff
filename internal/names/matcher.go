// Package names recognizes collector names in label transcripts by fuzzy
// comparison against a collector catalog.
package names

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/similarity"
)

// Surname-only hits are discounted against hits that include a first name.
const surnameWeight = 0.9

// Hit is one recognized collector occurrence. Start and End are byte offsets
// into the searched text.
type Hit struct {
	CollectorID string
	Name        string // display name of the collector
	Matched     string // text as it appears on the label
	Format      string
	Score       float64
	FullName    bool
	Start, End  int
}

// formats follows the order of model.Collector.AllFormats.
var formats = []string{"{N}", "{f} {N}", "{N} {f}", "{f}. {N}", "{N} {f}.", "{F} {N}", "{N} {F}"}

type token struct {
	text       string
	start, end int
}

type rendering struct {
	format string
	tokens []string
}

type entry struct {
	collector  model.Collector
	entity     bool
	renderings []rendering
}

// Matcher finds collectors in free text.
type Matcher struct {
	entries   []entry
	threshold float64
}

// NewMatcher indexes the collector catalog. threshold is the minimum edit
// similarity a label window needs to count as a rendering of a name.
func NewMatcher(collectors []model.Collector, threshold float64) *Matcher {
	m := &Matcher{threshold: threshold}
	for _, c := range collectors {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		e := entry{collector: c, entity: isEntity(c)}
		for i, text := range c.AllFormats() {
			e.renderings = append(e.renderings, rendering{format: formats[i], tokens: words(text)})
		}
		m.entries = append(m.entries, e)
	}
	return m
}

// isEntity reports whether the collector is an institution rather than a
// person, in which case abbreviations are searched instead of fuzzy names.
func isEntity(c model.Collector) bool {
	kind, ok := c.Metadata["entity_type"].(string)
	return ok && kind != "" && kind != "person"
}

// Find returns the best collector hit in text.
func (m *Matcher) Find(text string) (Hit, bool) {
	hits := m.search(text)
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

// FindAll returns the highest scoring hits that do not overlap, in text
// order.
func (m *Matcher) FindAll(text string) []Hit {
	var out []Hit
	for _, h := range m.search(text) {
		overlaps := false
		for _, o := range out {
			if h.Start < o.End && o.Start < h.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// search returns one hit per recognized collector, best first.
func (m *Matcher) search(text string) []Hit {
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil
	}

	var hits []Hit
	for _, e := range m.entries {
		var h Hit
		var ok bool
		if e.entity {
			h, ok = abbreviationHit(e, toks)
		} else {
			h, ok = m.personHit(e, toks)
		}
		if !ok {
			continue
		}
		h.CollectorID = e.collector.ID
		h.Name = e.collector.Text()
		h.Matched = text[h.Start:h.End]
		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].FullName != hits[j].FullName {
			return hits[i].FullName
		}
		return hits[i].CollectorID < hits[j].CollectorID
	})
	return hits
}

// personHit requires the surname to be present, then looks for the best
// rendering including a first name.
func (m *Matcher) personHit(e entry, toks []token) (Hit, bool) {
	surname := e.renderings[0]
	score, start, end, ok := m.bestWindow(surname.tokens, toks)
	if !ok {
		return Hit{}, false
	}
	best := Hit{Format: surname.format, Score: score * surnameWeight, Start: start, End: end}

	for _, r := range e.renderings[1:] {
		score, start, end, ok := m.bestWindow(r.tokens, toks)
		if ok && (!best.FullName || score > best.Score) {
			best = Hit{Format: r.format, Score: score, FullName: true, Start: start, End: end}
		}
	}
	return best, true
}

// bestWindow slides a window of len(want) tokens over toks and returns the
// best scoring one at or above the threshold.
func (m *Matcher) bestWindow(want []string, toks []token) (float64, int, int, bool) {
	n := len(want)
	if n == 0 || n > len(toks) {
		return 0, 0, 0, false
	}
	target := strings.Join(want, " ")

	best, bi := -1.0, -1
	for i := 0; i+n <= len(toks); i++ {
		parts := make([]string, n)
		for j := range parts {
			parts[j] = toks[i+j].text
		}
		if s := similarity.EditSimilarity(strings.Join(parts, " "), target); s > best {
			best, bi = s, i
		}
	}
	if best < m.threshold {
		return 0, 0, 0, false
	}
	return best, toks[bi].start, toks[bi+n-1].end, true
}

// abbreviationHit matches institution names written with truncated words,
// such as "Mus. Hist. Nat." for "Museum Histoire Naturelle".
func abbreviationHit(e entry, toks []token) (Hit, bool) {
	want := e.renderings[0].tokens
	n := len(want)
	for i := 0; i+n <= len(toks); i++ {
		ok := true
		for j := 0; j < n && ok; j++ {
			ok = strings.HasPrefix(want[j], toks[i+j].text)
		}
		if ok {
			return Hit{Format: e.renderings[0].format, Score: 1, FullName: true, Start: toks[i].start, End: toks[i+n-1].end}, true
		}
	}
	return Hit{}, false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// tokenize splits text into folded words and keeps their byte offsets.
func tokenize(text string) []token {
	var out []token
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, token{text: similarity.Fold(text[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, token{text: similarity.Fold(text[start:]), start: start, end: len(text)})
	}
	return out
}

func words(s string) []string {
	var out []string
	for _, t := range tokenize(s) {
		out = append(out, t.text)
	}
	return out
}
