package cluster

import (
	"context"
	"unicode/utf8"

	"github.com/ppiankov/labelsort/internal/model"
)

// representative computes the display and matching text of a cluster
// according to the configured policy.
func (e *Engine) representative(ctx context.Context, labels []model.Label, members []int) (string, error) {
	switch e.opts.Representative {
	case model.RepresentativePick:
		i, err := e.pick(ctx, labels, members)
		if err != nil {
			return "", err
		}
		return labels[members[i]].Text, nil
	case model.RepresentativeAlignment:
		center, err := e.pick(ctx, labels, members)
		if err != nil {
			return "", err
		}
		texts := make([]string, len(members))
		for i, m := range members {
			texts[i] = labels[m].Text
		}
		return Consensus(texts, center), nil
	default:
		return labels[members[0]].Text, nil
	}
}

// pick returns the position (within members) of the member minimizing total
// edit distance to the others. Ties prefer the shorter text, then the
// lexicographically smaller one, then the earlier member.
func (e *Engine) pick(ctx context.Context, labels []model.Label, members []int) (int, error) {
	if len(members) == 1 {
		return 0, nil
	}
	dist, err := newDistanceMatrix(ctx, e.opts.Workers, e.memberTexts(labels, members))
	if err != nil {
		return 0, err
	}

	all := make([]int, len(members))
	for i := range all {
		all[i] = i
	}
	best, bestCost := 0, dist.sumTo(0, all)
	for i := 1; i < len(members); i++ {
		cost := dist.sumTo(i, all)
		if cost < bestCost || (cost == bestCost && prefer(labels[members[i]].Text, labels[members[best]].Text)) {
			best, bestCost = i, cost
		}
	}
	return best, nil
}

func prefer(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
