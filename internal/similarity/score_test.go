package similarity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labelsort/internal/cache"
	"github.com/ppiankov/labelsort/internal/model"
)

var corpus = []string{
	"Argentina Buenos Aires 1905 Frank",
	"Argentina Buen Aires 1905 Frank",
	"Brazil Rio 1910 Muller",
	"Bolivia, 12.III.1905 leg. Garlepp",
	"Bolivie 12 III 1905 Garlep",
	"",
	"the of and",
	"Río de Janeiro",
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"punctuation and accents", "The Río, Buenos-Aires!", []string{"aires", "buenos", "rio"}},
		{"sorted and deduplicated", "Frank frank 1905 Argentina", []string{"1905", "argentina", "frank"}},
		{"only stop words", "the of and", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		fuzzyMin float64
		want     float64
	}{
		{"both empty", "", "", 0.6, 1},
		{"one empty", "", "Brazil", 0.6, 0},
		{"stop words only vs empty", "the of", "", 0.6, 1},
		{"identical", "Brazil Rio 1910", "rio brazil 1910", 0.6, 1},
		{"plain jaccard", "a1 b2 c3", "a1 b2 d4", 1, 0.5},
		{"fuzzy token", "Argentina Buenos Aires 1905 Frank", "Argentina Buen Aires 1905 Frank", 0.6, (4 + 2.0/3) / 5},
		{"exact only", "Argentina Buenos Aires 1905 Frank", "Argentina Buen Aires 1905 Frank", 1, 4.0 / 6},
		{"digits exact", "1905", "1906", 0.6, 0},
		{"unrelated", "Argentina Buenos Aires 1905 Frank", "Brazil Rio 1910 Muller", 0.6, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenOverlap(Tokenize(tt.a), Tokenize(tt.b), tt.fuzzyMin)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScorers_SymmetricAndBounded(t *testing.T) {
	n := NewNormalizer(nil, 0)
	for _, mode := range []Mode{ModeToken, ModeEdit} {
		s, err := New(mode, n, 0.6)
		require.NoError(t, err)
		for _, a := range corpus {
			assert.InDelta(t, 1.0, s.Score(a, a), 1e-9, "%s: self score of %q", mode, a)
			for _, b := range corpus {
				ab, ba := s.Score(a, b), s.Score(b, a)
				assert.InDelta(t, ab, ba, 1e-9, "%s: score(%q,%q) not symmetric", mode, a, b)
				assert.GreaterOrEqual(t, ab, 0.0)
				assert.LessOrEqual(t, ab, 1.0)
			}
		}
	}
}

func TestEditSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, EditSimilarity("", ""))
	assert.Equal(t, 0.0, EditSimilarity("abc", ""))
	assert.Equal(t, 1.0, EditSimilarity("abc", "abc"))
	assert.InDelta(t, 1-1.0/3, EditSimilarity("abc", "abd"), 1e-9)
	assert.InDelta(t, 0.75, EditSimilarity("ríos", "rios"), 1e-9, "lengths are counted in runes")
}

func TestEditScorer_NormalizedEquality(t *testing.T) {
	s, err := New(ModeEdit, NewNormalizer(nil, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Score("Rio, Brazil", "brazil RIO"))
	assert.Less(t, s.Score("Rio Brazil 1905", "Rio Brazil 1906"), 1.0)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("edit")
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, m)

	_, err = ParseMode("cosine")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	_, err = New(Mode("cosine"), nil, 0)
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestNormalizer_Memoizes(t *testing.T) {
	memo := cache.NewMemoryCache[[]string](time.Minute, time.Minute)
	n := NewNormalizer(memo, 0)

	first := n.Tokens("Brazil Rio 1910")
	assert.Equal(t, 1, memo.Len())
	second := n.Tokens("Brazil Rio 1910")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, memo.Len())
	assert.Equal(t, "1910 brazil rio", n.Text("Brazil Rio 1910"))
}
