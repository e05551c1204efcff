package cluster

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ppiankov/labelsort/internal/model"
)

const (
	// minSplitSize is the smallest cluster sub-clustering will look at.
	minSplitSize = 4
	maxPAMRounds = 50
)

// refine replaces primary clusters by their K-medoid partitions where the
// split is clear enough. It only ever subdivides one primary cluster.
func (e *Engine) refine(ctx context.Context, labels []model.Label, groups []group) ([]group, error) {
	cfg := e.opts.SubMedoid
	if !cfg.Enabled && cfg.AutoSize <= 0 {
		return groups, nil
	}

	out := make([]group, 0, len(groups))
	for _, g := range groups {
		size := len(g.members)
		wanted := (cfg.Enabled && size >= minSplitSize) || (cfg.AutoSize > 0 && size > cfg.AutoSize)
		if !wanted {
			out = append(out, g)
			continue
		}

		parts, err := e.splitMedoids(ctx, e.memberTexts(labels, g.members), g.primary)
		if err != nil {
			return nil, err
		}
		if parts == nil {
			out = append(out, g)
			continue
		}
		for k, part := range parts {
			members := make([]int, len(part))
			for i, p := range part {
				members[i] = g.members[p]
			}
			out = append(out, group{members: members, primary: g.primary, sub: k + 1})
		}
	}
	return out, nil
}

// splitMedoids tries K = 2..max_k on the pairwise distance matrix and keeps
// the partition with the best mean silhouette. It returns nil when no
// partition reaches the configured minimum silhouette. Parts are lists of
// local indices ordered by first member.
func (e *Engine) splitMedoids(ctx context.Context, texts []string, stream int) ([][]int, error) {
	dist, err := newDistanceMatrix(ctx, e.opts.Workers, texts)
	if err != nil {
		return nil, err
	}
	if dist.allZero() {
		return nil, nil
	}

	cfg := e.opts.SubMedoid
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(stream)))

	var (
		bestAssign []int
		bestK      int
		bestSil    = math.Inf(-1)
	)
	for k := 2; k <= cfg.MaxK && k < len(texts); k++ {
		assign, ok := kMedoids(dist, k, rng)
		if !ok {
			break
		}
		if sil := silhouette(dist, assign, k); sil > bestSil {
			bestSil, bestK, bestAssign = sil, k, assign
		}
	}

	if bestAssign == nil || bestSil < cfg.MinSilhouette {
		e.logger.Debug().Int("size", len(texts)).Float64("silhouette", bestSil).Msg("cluster kept whole")
		return nil, nil
	}
	e.logger.Debug().Int("size", len(texts)).Int("k", bestK).Float64("silhouette", bestSil).Msg("cluster split")
	return partition(bestAssign, bestK), nil
}

// kMedoids runs PAM-style alternation: assign every point to its nearest
// medoid, then move each medoid to the member minimizing total in-cluster
// distance, until stable. It fails when fewer than k distinct points exist.
func kMedoids(d distanceMatrix, k int, rng *rand.Rand) ([]int, bool) {
	medoids, ok := seedMedoids(d, k, rng)
	if !ok {
		return nil, false
	}

	n := len(d)
	assign := make([]int, n)
	for round := 0; round < maxPAMRounds; round++ {
		for i := 0; i < n; i++ {
			assign[i] = nearest(d, i, medoids)
		}
		for c, m := range medoids {
			assign[m] = c
		}

		changed := false
		for c := range medoids {
			var members []int
			for i, a := range assign {
				if a == c {
					members = append(members, i)
				}
			}
			best, bestCost := medoids[c], d.sumTo(medoids[c], members)
			for _, m := range members {
				if cost := d.sumTo(m, members); cost < bestCost {
					best, bestCost = m, cost
				}
			}
			if best != medoids[c] {
				medoids[c] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for i := 0; i < n; i++ {
		assign[i] = nearest(d, i, medoids)
	}
	for c, m := range medoids {
		assign[m] = c
	}
	return assign, true
}

// seedMedoids starts from the overall medoid and draws the rest with
// probability proportional to squared distance from the chosen ones.
func seedMedoids(d distanceMatrix, k int, rng *rand.Rand) ([]int, bool) {
	n := len(d)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	first, firstCost := 0, d.sumTo(0, all)
	for i := 1; i < n; i++ {
		if cost := d.sumTo(i, all); cost < firstCost {
			first, firstCost = i, cost
		}
	}

	medoids := []int{first}
	weights := make([]float64, n)
	for len(medoids) < k {
		var total float64
		for i := 0; i < n; i++ {
			near := d[i][medoids[nearest(d, i, medoids)]]
			weights[i] = near * near
			total += weights[i]
		}
		if total == 0 {
			return nil, false
		}
		target := rng.Float64() * total
		pick := -1
		for i, w := range weights {
			if w == 0 {
				continue
			}
			pick = i
			if target < w {
				break
			}
			target -= w
		}
		medoids = append(medoids, pick)
	}
	return medoids, true
}

func nearest(d distanceMatrix, i int, medoids []int) int {
	best := 0
	for c := 1; c < len(medoids); c++ {
		if d[i][medoids[c]] < d[i][medoids[best]] {
			best = c
		}
	}
	return best
}

// silhouette is the mean silhouette width; points in singleton clusters
// contribute 0.
func silhouette(d distanceMatrix, assign []int, k int) float64 {
	n := len(assign)
	sizes := make([]int, k)
	for _, a := range assign {
		sizes[a]++
	}

	var total float64
	for i := 0; i < n; i++ {
		own := assign[i]
		if sizes[own] <= 1 {
			continue
		}
		sums := make([]float64, k)
		for j := 0; j < n; j++ {
			if j != i {
				sums[assign[j]] += d[i][j]
			}
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && sizes[c] > 0 {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}

// partition turns an assignment into member lists ordered by first member.
func partition(assign []int, k int) [][]int {
	parts := make([][]int, k)
	for i, a := range assign {
		parts[a] = append(parts[a], i)
	}
	var out [][]int
	for _, p := range parts {
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
