package cluster

import (
	"context"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/similarity"
	"github.com/ppiankov/labelsort/internal/worker"
)

// distanceMatrix holds symmetric pairwise Levenshtein distances.
type distanceMatrix [][]float64

// newDistanceMatrix computes distances between texts; rows of the upper
// triangle are computed on the worker pool.
func newDistanceMatrix(ctx context.Context, workers int, texts []string) (distanceMatrix, error) {
	n := len(texts)
	rows, err := worker.Map(ctx, workers, n, func(_ context.Context, i int) ([]float64, error) {
		row := make([]float64, n)
		for j := i + 1; j < n; j++ {
			row[j] = float64(similarity.Distance(texts[i], texts[j]))
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rows[j][i] = rows[i][j]
		}
	}
	return rows, nil
}

// sumTo returns the total distance from i to the given points.
func (d distanceMatrix) sumTo(i int, points []int) float64 {
	var total float64
	for _, p := range points {
		total += d[i][p]
	}
	return total
}

// allZero reports whether every pair is identical.
func (d distanceMatrix) allZero() bool {
	for i := range d {
		for j := i + 1; j < len(d); j++ {
			if d[i][j] != 0 {
				return false
			}
		}
	}
	return true
}

// memberTexts returns the normalized texts of the given members.
func (e *Engine) memberTexts(labels []model.Label, members []int) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = e.norm.Text(labels[m].Text)
	}
	return out
}
