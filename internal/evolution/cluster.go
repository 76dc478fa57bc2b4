package evolution

import (
	"sort"

	"github.com/fyrsmithlabs/instinctd/internal/instinct"
)

// Cluster is a transient grouping of related instincts. Recomputed on
// every evolution run; never persisted.
type Cluster struct {
	Members       []*instinct.Instinct
	AvgConfidence float64
	Theme         string
}

// clusterInstincts links every pair with similarity at or above the
// threshold and returns the connected components of the link graph.
// Instincts with no links form singleton clusters.
func clusterInstincts(instincts []*instinct.Instinct, threshold float64) []Cluster {
	n := len(instincts)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if Similarity(instincts[i], instincts[j]) >= threshold {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]*instinct.Instinct)
	for i, inst := range instincts {
		root := find(i)
		byRoot[root] = append(byRoot[root], inst)
	}

	roots := make([]int, 0, len(byRoot))
	for root := range byRoot {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	clusters := make([]Cluster, 0, len(byRoot))
	for _, root := range roots {
		members := byRoot[root]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		sum := 0.0
		for _, m := range members {
			sum += m.Confidence
		}
		clusters = append(clusters, Cluster{
			Members:       members,
			AvgConfidence: sum / float64(len(members)),
			Theme:         sharedTheme(members),
		})
	}
	return clusters
}
