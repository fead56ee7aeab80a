package aggregate

import "imgdupes/internal/models"

// Union-Find over path indices
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: rank}
}

func (uf *unionFind) find(x int) int {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x]) // Path compression
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y int) {
	px, py := uf.find(x), uf.find(y)
	if px == py {
		return
	}
	// Union by rank
	if uf.rank[px] < uf.rank[py] {
		px, py = py, px
	}
	uf.parent[py] = px
	if uf.rank[px] == uf.rank[py] {
		uf.rank[px]++
	}
}

// MergeOverlapping joins groups that share at least one path. Since a path
// has exactly one fingerprint, the output has one group per fingerprint.
// Paths keep the order in which they were first seen.
func MergeOverlapping(groups []*models.DuplicateGroup) []*models.DuplicateGroup {
	if len(groups) < 2 {
		return groups
	}

	index := make(map[models.ImagePath]int)
	var paths []models.ImagePath
	var fps []models.Fingerprint
	for _, g := range groups {
		for _, p := range g.Paths {
			if _, ok := index[p]; !ok {
				index[p] = len(paths)
				paths = append(paths, p)
				fps = append(fps, g.Fingerprint)
			}
		}
	}

	uf := newUnionFind(len(paths))
	for _, g := range groups {
		first := index[g.Paths[0]]
		for _, p := range g.Paths[1:] {
			uf.union(first, index[p])
		}
	}

	var roots []int
	members := make(map[int][]models.ImagePath)
	for i, p := range paths {
		root := uf.find(i)
		if _, ok := members[root]; !ok {
			roots = append(roots, root)
		}
		members[root] = append(members[root], p)
	}

	merged := make([]*models.DuplicateGroup, 0, len(roots))
	for _, root := range roots {
		if g, err := models.NewDuplicateGroup(fps[root], members[root]...); err == nil {
			merged = append(merged, g)
		}
	}
	return merged
}
