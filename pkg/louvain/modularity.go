package louvain

// Modularity computes Newman modularity of a partition given as node ->
// community labels in 0..k-1. Resolution scales the degree null-model term.
// A graph without edges has modularity 0.
func Modularity(graph *Graph, membership []int, resolution float64) float64 {
	m := graph.TotalWeight
	if m == 0 {
		return 0.0
	}

	k := countCommunities(membership)
	internal := make([]float64, k)
	total := make([]float64, k)

	for u := 0; u < graph.NumNodes; u++ {
		cu := membership[u]
		total[cu] += graph.Degrees[u]

		neighbors, weights := graph.GetNeighbors(u)
		for i, v := range neighbors {
			if membership[v] != cu {
				continue
			}
			if u == v {
				internal[cu] += weights[i]
			} else {
				internal[cu] += weights[i] / 2 // seen from both endpoints
			}
		}
	}

	m2 := 2.0 * m
	q := 0.0
	for c, tot := range total {
		q += internal[c]/m - resolution*(tot/m2)*(tot/m2)
	}
	return q
}
