package cluster

import (
	"context"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/worker"
)

// link builds single-linkage clusters: two labels share a cluster when a
// chain of pairwise scores at or above the threshold connects them. Raising
// the threshold can only split clusters.
func (e *Engine) link(ctx context.Context, labels []model.Label) ([]group, error) {
	n := len(labels)
	edges, err := worker.Map(ctx, e.opts.Workers, n, func(_ context.Context, i int) ([]int, error) {
		var out []int
		for j := i + 1; j < n; j++ {
			if e.scorer.Score(labels[i].Text, labels[j].Text) >= e.opts.Threshold {
				out = append(out, j)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	uf := newUnionFind(n)
	for i, row := range edges {
		for _, j := range row {
			uf.union(i, j)
		}
	}

	index := make(map[int]int)
	var groups []group
	for i := 0; i < n; i++ {
		root := uf.find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, group{primary: g})
		}
		groups[g].members = append(groups[g].members, i)
	}
	return groups, nil
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so roots are stable.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
