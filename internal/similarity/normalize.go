package similarity

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ppiankov/labelsort/internal/cache"
	"github.com/ppiankov/labelsort/internal/util"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "this": {}, "but": {}, "they": {}, "have": {}, "had": {}, "what": {},
	"said": {}, "each": {}, "which": {}, "she": {}, "do": {}, "how": {}, "their": {},
	"if": {}, "up": {}, "out": {}, "many": {}, "then": {}, "them": {},
}

// IsStopWord reports whether a folded token is ignored by normalization.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Fold lower-cases text and strips diacritics.
func Fold(text string) string {
	return util.Fold(text)
}

// Normalizer turns raw transcripts into sorted, de-duplicated token sets.
// Results are memoized when a cache is supplied; callers must not modify
// returned slices.
type Normalizer struct {
	memo cache.Cache[[]string]
	ttl  time.Duration
}

// NewNormalizer creates a normalizer. memo may be nil.
func NewNormalizer(memo cache.Cache[[]string], ttl time.Duration) *Normalizer {
	return &Normalizer{memo: memo, ttl: ttl}
}

// Tokens returns the normalized token set of text: folded, punctuation
// removed, stop words dropped, sorted.
func (n *Normalizer) Tokens(text string) []string {
	if n == nil || n.memo == nil {
		return Tokenize(text)
	}
	key := cache.Key("tokens", text)
	if tokens, ok := n.memo.Get(key); ok {
		return tokens
	}
	tokens := Tokenize(text)
	_ = n.memo.Set(key, tokens, n.ttl)
	return tokens
}

// Text returns the normalized tokens joined by single spaces.
func (n *Normalizer) Text(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokenize normalizes text without memoization.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if IsStopWord(f) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return tokens
}
