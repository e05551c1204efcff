package cluster

import (
	"context"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/worker"
)

// parallelMin is the number of open clusters above which candidate scores
// for one label are computed on the worker pool.
const parallelMin = 256

// aggregate runs the greedy threshold pass in input order. Each cluster is
// compared through its seed text; ties go to the earliest cluster.
func (e *Engine) aggregate(ctx context.Context, labels []model.Label) ([]group, error) {
	var groups []group
	seeds := make([]string, 0)

	for i, l := range labels {
		scores, err := e.scoreSeeds(ctx, l.Text, seeds)
		if err != nil {
			return nil, err
		}

		best, bestScore := -1, -1.0
		for g, s := range scores {
			if s >= e.opts.Threshold && s > bestScore {
				best, bestScore = g, s
			}
		}

		if best < 0 {
			groups = append(groups, group{members: []int{i}, primary: len(groups)})
			seeds = append(seeds, l.Text)
			continue
		}
		groups[best].members = append(groups[best].members, i)
	}
	return groups, nil
}

func (e *Engine) scoreSeeds(ctx context.Context, text string, seeds []string) ([]float64, error) {
	if len(seeds) < parallelMin || e.opts.Workers == 1 {
		scores := make([]float64, len(seeds))
		for i, s := range seeds {
			scores[i] = e.scorer.Score(text, s)
		}
		return scores, nil
	}
	return worker.Map(ctx, e.opts.Workers, len(seeds), func(_ context.Context, i int) (float64, error) {
		return e.scorer.Score(text, seeds[i]), nil
	})
}
