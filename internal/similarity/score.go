package similarity

import (
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ppiankov/labelsort/internal/model"
)

// Mode selects the scoring function.
type Mode string

const (
	ModeToken Mode = model.ScorerToken
	ModeEdit  Mode = model.ScorerEdit
)

// ParseMode validates a scorer name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeToken, ModeEdit:
		return Mode(s), nil
	default:
		return "", model.ConfigErrorf("unknown scorer mode %q (supported: token, edit)", s)
	}
}

// Scorer compares two raw texts.
type Scorer interface {
	Score(a, b string) float64
}

// New returns the scorer for mode. fuzzyMin only affects the token scorer.
func New(mode Mode, n *Normalizer, fuzzyMin float64) (Scorer, error) {
	switch mode {
	case ModeToken:
		return &TokenScorer{norm: n, fuzzyMin: fuzzyMin}, nil
	case ModeEdit:
		return &EditScorer{norm: n}, nil
	default:
		_, err := ParseMode(string(mode))
		if err == nil {
			err = fmt.Errorf("scorer mode %q not wired", mode)
		}
		return nil, err
	}
}

// TokenScorer scores the overlap of normalized token sets.
type TokenScorer struct {
	norm     *Normalizer
	fuzzyMin float64
}

// Score implements Scorer.
func (s *TokenScorer) Score(a, b string) float64 {
	return TokenOverlap(s.norm.Tokens(a), s.norm.Tokens(b), s.fuzzyMin)
}

// EditScorer scores the edit distance between normalized texts.
type EditScorer struct {
	norm *Normalizer
}

// Score implements Scorer.
func (s *EditScorer) Score(a, b string) float64 {
	return EditSimilarity(s.norm.Text(a), s.norm.Text(b))
}

// Distance is the Levenshtein distance in runes.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// EditSimilarity is 1 - lev(a,b)/max(len(a),len(b)); two empty strings
// score 1.
func EditSimilarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(longest)
}

type tokenPair struct {
	i, j   int
	sim    float64
	lo, hi string
}

// TokenOverlap is a Jaccard index over token sets in which near-identical
// alphabetic tokens (edit similarity >= fuzzyMin) count as a partial match
// weighted by their similarity. Tokens containing digits must be equal.
// With fuzzyMin >= 1 it is the plain Jaccard index.
func TokenOverlap(a, b []string, fuzzyMin float64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var pairs []tokenPair
	for i, ta := range a {
		for j, tb := range b {
			sim := tokenSimilarity(ta, tb, fuzzyMin)
			if sim == 0 {
				continue
			}
			lo, hi := ta, tb
			if hi < lo {
				lo, hi = hi, lo
			}
			pairs = append(pairs, tokenPair{i: i, j: j, sim: sim, lo: lo, hi: hi})
		}
	}
	sort.SliceStable(pairs, func(x, y int) bool {
		if pairs[x].sim != pairs[y].sim {
			return pairs[x].sim > pairs[y].sim
		}
		if pairs[x].lo != pairs[y].lo {
			return pairs[x].lo < pairs[y].lo
		}
		return pairs[x].hi < pairs[y].hi
	})

	usedA := make([]bool, len(a))
	usedB := make([]bool, len(b))
	var total float64
	matched := 0
	for _, p := range pairs {
		if usedA[p.i] || usedB[p.j] {
			continue
		}
		usedA[p.i], usedB[p.j] = true, true
		total += p.sim
		matched++
	}
	return total / float64(len(a)+len(b)-matched)
}

func tokenSimilarity(a, b string, fuzzyMin float64) float64 {
	if a == b {
		return 1
	}
	if fuzzyMin >= 1 || hasDigit(a) || hasDigit(b) {
		return 0
	}
	if sim := EditSimilarity(a, b); sim >= fuzzyMin {
		return sim
	}
	return 0
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
