package daterange

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/labelsort/internal/util"
)

// role names the date field a capture group contributes to.
type role int

const (
	d1 role = iota
	m1
	y1
	d2
	m2
	y2
)

type pattern struct {
	name  string
	re    *regexp.Regexp
	roles []role
}

const (
	lead  = `(?:^|[^\pL\pN'])`
	trail = `(?:$|[^\pL\pN])`
	day   = `([0-3]?[0-9])`
	month = `([0-9]{1,2}|\pL{1,10}\.?)`
	year  = `([12][0-9]{3}|'[0-9]{2})`
	sep   = `(?:\s*[./,:|]\s*|\s+)`
	dash  = `\s*[-–]\s*`
)

// Parser extracts the most informative date or date range found in free
// text. Day-first orders are assumed, as on European labels; months may be
// written in digits, roman numerals or words.
type Parser struct {
	patterns []pattern
}

// NewParser compiles the supported formats, most specific first.
func NewParser() *Parser {
	specs := []struct {
		name  string
		expr  string
		roles []role
	}{
		{"dd.mm.yyyy-dd.mm.yyyy", day + sep + month + sep + year + dash + day + sep + month + sep + year, []role{d1, m1, y1, d2, m2, y2}},
		{"dd.mm-dd.mm.yyyy", day + sep + month + dash + day + sep + month + sep + year, []role{d1, m1, d2, m2, y2}},
		{"dd-dd.mm.yyyy", day + dash + day + sep + month + sep + year, []role{d1, d2, m2, y2}},
		{"mm-mm.yyyy", month + dash + month + sep + year, []role{m1, m2, y2}},
		{"yyyy-yyyy", year + dash + year, []role{y1, y2}},
		{"dd.mm.yyyy", day + sep + month + sep + year, []role{d1, m1, y1}},
		{"mm.yyyy", month + sep + year, []role{m1, y1}},
		{"yyyy", year, []role{y1}},
	}

	p := &Parser{}
	for _, s := range specs {
		p.patterns = append(p.patterns, pattern{
			name:  s.name,
			re:    regexp.MustCompile(`(?i)` + lead + s.expr + trail),
			roles: s.roles,
		})
	}
	return p
}

// Parse returns the date range found in text. The boolean is false when no
// supported format yields a valid date.
func (p *Parser) Parse(text string) (Range, bool) {
	r, _, ok := p.ParseFormat(text)
	return r, ok
}

// ParseFormat is Parse that also reports which format matched.
func (p *Parser) ParseFormat(text string) (Range, string, bool) {
	r, name, _, ok := p.find(text)
	return r, name, ok
}

// Find is Parse that also returns the text the date was read from, with
// runs of white space collapsed.
func (p *Parser) Find(text string) (Range, string, bool) {
	r, _, verbatim, ok := p.find(text)
	return r, verbatim, ok
}

func (p *Parser) find(text string) (Range, string, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Range{}, "", "", false
	}
	// Widen the separators so adjacent matches do not share a boundary rune.
	padded := " " + strings.ReplaceAll(text, " ", "  ") + " "

	for _, pat := range p.patterns {
		for _, loc := range pat.re.FindAllStringSubmatchIndex(padded, -1) {
			groups := make([]string, len(loc)/2-1)
			start, end := -1, -1
			for i := range groups {
				a, b := loc[2*i+2], loc[2*i+3]
				if a < 0 {
					continue
				}
				groups[i] = padded[a:b]
				if start < 0 {
					start = a
				}
				end = b
			}
			if r, ok := build(pat.roles, groups); ok {
				return r, pat.name, strings.Join(strings.Fields(padded[start:end]), " "), true
			}
		}
	}
	return Range{}, "", "", false
}

func build(roles []role, groups []string) (Range, bool) {
	var fields [6]string
	for i, r := range roles {
		fields[r] = groups[i]
	}
	fill := func(a, b role) {
		if fields[a] == "" {
			fields[a] = fields[b]
		}
		if fields[b] == "" {
			fields[b] = fields[a]
		}
	}
	fill(y1, y2)
	fill(m1, m2)
	fill(d1, d2)

	start, ok := assemble(fields[d1], fields[m1], fields[y1])
	if !ok {
		return Range{}, false
	}
	end, ok := assemble(fields[d2], fields[m2], fields[y2])
	if !ok {
		return Range{}, false
	}
	r, err := New(start, end)
	if err != nil {
		return Range{}, false
	}
	return r, true
}

func assemble(dayText, monthText, yearText string) (Date, bool) {
	var d Date
	y, centuryKnown, ok := parseYear(yearText)
	if !ok {
		return Date{}, false
	}
	d.Year, d.CenturyKnown, d.Precision = y, centuryKnown, Year

	if monthText == "" {
		return d, true
	}
	m, ok := ParseMonth(monthText)
	if !ok {
		return Date{}, false
	}
	d.Month, d.Precision = m, Month

	if dayText == "" {
		return d, true
	}
	dd, err := strconv.Atoi(dayText)
	if err != nil || dd < 1 || dd > daysIn(m) {
		return Date{}, false
	}
	d.Day, d.Precision = dd, Day
	return d, true
}

func parseYear(s string) (int, bool, bool) {
	if strings.HasPrefix(s, "'") {
		y, err := strconv.Atoi(s[1:])
		return y, false, err == nil
	}
	y, err := strconv.Atoi(s)
	return y, true, err == nil
}

func daysIn(month int) int {
	switch month {
	case 2:
		return 29
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

var romanMonths = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6,
	"vii": 7, "viii": 8, "ix": 9, "x": 10, "xi": 11, "xii": 12,
}

var monthNames = map[string]int{
	"jan": 1, "janv": 1, "january": 1, "janvier": 1, "januar": 1, "enero": 1,
	"feb": 2, "fev": 2, "fevr": 2, "february": 2, "fevrier": 2, "februar": 2, "febrero": 2,
	"mar": 3, "mars": 3, "march": 3, "marz": 3, "marzo": 3,
	"apr": 4, "avr": 4, "april": 4, "avril": 4, "abril": 4,
	"may": 5, "mai": 5, "mayo": 5,
	"jun": 6, "juin": 6, "june": 6, "juni": 6, "junio": 6,
	"jul": 7, "juil": 7, "juillet": 7, "july": 7, "juli": 7, "julio": 7,
	"aug": 8, "aout": 8, "august": 8, "agosto": 8,
	"sep": 9, "sept": 9, "september": 9, "septembre": 9, "septiembre": 9,
	"oct": 10, "okt": 10, "october": 10, "octobre": 10, "oktober": 10, "octubre": 10,
	"nov": 11, "november": 11, "novembre": 11, "noviembre": 11,
	"dec": 12, "dez": 12, "december": 12, "decembre": 12, "dezember": 12, "diciembre": 12,
}

// ParseMonth reads a month written as a number, a roman numeral or a name
// (English, French, German or Spanish, full or abbreviated).
func ParseMonth(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 1 && n <= 12
	}
	s = util.Fold(s)
	if n, ok := romanMonths[s]; ok {
		return n, true
	}
	n, ok := monthNames[s]
	return n, ok
}
