// Package similarity provides the text primitives shared by clustering and
// matching: normalization, a fuzzy token-overlap score and a normalized
// edit-distance score. Both scores are symmetric and bounded to [0, 1].
package similarity
