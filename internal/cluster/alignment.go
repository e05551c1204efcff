package cluster

import "strings"

const gap rune = 0

// Consensus aligns every text against texts[center] (center-star multiple
// alignment, unit edit costs) and keeps, column by column, the character
// most members agree on. Ties keep the center's character. Gaps are dropped
// and whitespace is collapsed.
func Consensus(texts []string, center int) string {
	if len(texts) == 0 {
		return ""
	}
	seqs := make([][]rune, len(texts))
	for i, t := range texts {
		seqs[i] = []rune(strings.Join(strings.Fields(t), " "))
	}
	if len(texts) <= 2 {
		return string(seqs[center])
	}

	ref := seqs[center]
	n := len(ref)
	cols := make([][]rune, len(seqs))
	inserts := make([][][]rune, len(seqs))
	slot := make([]int, n+1)
	for i, s := range seqs {
		if i == center {
			cols[i] = ref
			inserts[i] = make([][]rune, n+1)
			continue
		}
		cols[i], inserts[i] = alignTo(ref, s)
		for p, ins := range inserts[i] {
			slot[p] = max(slot[p], len(ins))
		}
	}

	var out []rune
	votes := make(map[rune]int)
	vote := func(column func(i int) rune) {
		clear(votes)
		for i := range seqs {
			votes[column(i)]++
		}
		centerChar := column(center)
		best, bestCount := centerChar, votes[centerChar]
		for r, c := range votes {
			if c > bestCount || (c == bestCount && best != centerChar && r < best) {
				best, bestCount = r, c
			}
		}
		if best != gap {
			out = append(out, best)
		}
	}

	for p := 0; p <= n; p++ {
		for k := 0; k < slot[p]; k++ {
			vote(func(i int) rune {
				if k < len(inserts[i][p]) {
					return inserts[i][p][k]
				}
				return gap
			})
		}
		if p < n {
			vote(func(i int) rune { return cols[i][p] })
		}
	}
	return strings.Join(strings.Fields(string(out)), " ")
}

// alignTo aligns s against ref with a Needleman-Wunsch alignment. It returns
// the character of s facing each ref position (gap when deleted) and the
// characters of s inserted before each ref position, with slot len(ref)
// holding trailing insertions.
func alignTo(ref, s []rune) ([]rune, [][]rune) {
	n, m := len(ref), len(s)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
		dp[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dp[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := dp[i-1][j-1]
			if ref[i-1] != s[j-1] {
				sub++
			}
			dp[i][j] = min(sub, dp[i-1][j]+1, dp[i][j-1]+1)
		}
	}

	cols := make([]rune, n)
	inserts := make([][]rune, n+1)
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+cost(ref[i-1], s[j-1]):
			cols[i-1] = s[j-1]
			i, j = i-1, j-1
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			cols[i-1] = gap
			i--
		default:
			inserts[i] = append([]rune{s[j-1]}, inserts[i]...)
			j--
		}
	}
	return cols, inserts
}

func cost(a, b rune) int {
	if a == b {
		return 0
	}
	return 1
}
