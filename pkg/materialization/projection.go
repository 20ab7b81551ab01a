package materialization

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/procurement-risk-graph/pkg/louvain"
)

// ProjectedEdge is a weighted edge between two supplier node indices, From < To
type ProjectedEdge struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

// SupplierProjection is the supplier-only graph where two suppliers are
// linked when they share at least one buyer, weighted by the number of
// shared buyers. Suppliers without shared buyers are kept as isolated nodes.
type SupplierProjection struct {
	suppliers []string
	index     map[string]int
	graph     *simple.WeightedUndirectedGraph
	edges     []ProjectedEdge
}

// ProjectionStats summarizes a projection
type ProjectionStats struct {
	Buyers            int     `json:"buyers"`
	Suppliers         int     `json:"suppliers"`
	BipartiteEdges    int     `json:"bipartite_edges"`
	ProjectionEdges   int     `json:"projection_edges"`
	IsolatedSuppliers int     `json:"isolated_suppliers"`
	MaxWeight         float64 `json:"max_weight"`
}

// ProjectSuppliers builds the weighted supplier projection. Every buyer acts
// as a meeting point: each pair of its suppliers gains one unit of weight.
func (bg *BipartiteGraph) ProjectSuppliers() *SupplierProjection {
	proj := &SupplierProjection{
		suppliers: bg.suppliers,
		index:     make(map[string]int, len(bg.suppliers)),
		graph:     simple.NewWeightedUndirectedGraph(0, 0),
	}

	for i, s := range bg.suppliers {
		proj.index[s] = i
		proj.graph.AddNode(simple.Node(int64(i)))
	}

	shared := make(map[[2]int]float64)
	for _, buyer := range bg.buyers {
		members := append([]int(nil), bg.buyerSuppliers[buyer]...)
		sort.Ints(members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				shared[[2]int{members[i], members[j]}]++
			}
		}
	}

	proj.edges = make([]ProjectedEdge, 0, len(shared))
	for pair, weight := range shared {
		proj.edges = append(proj.edges, ProjectedEdge{From: pair[0], To: pair[1], Weight: weight})
	}
	sort.Slice(proj.edges, func(i, j int) bool {
		if proj.edges[i].From != proj.edges[j].From {
			return proj.edges[i].From < proj.edges[j].From
		}
		return proj.edges[i].To < proj.edges[j].To
	})

	for _, e := range proj.edges {
		proj.graph.SetWeightedEdge(proj.graph.NewWeightedEdge(
			simple.Node(int64(e.From)), simple.Node(int64(e.To)), e.Weight))
	}

	return proj
}

// Suppliers returns supplier identifiers indexed by node
func (p *SupplierProjection) Suppliers() []string { return p.suppliers }

// Edges returns projected edges sorted by (From, To)
func (p *SupplierProjection) Edges() []ProjectedEdge { return p.edges }

// NumNodes returns the number of supplier nodes
func (p *SupplierProjection) NumNodes() int { return len(p.suppliers) }

// NumEdges returns the number of supplier pairs sharing a buyer
func (p *SupplierProjection) NumEdges() int { return len(p.edges) }

// Index returns the node index of a supplier
func (p *SupplierProjection) Index(supplier string) (int, bool) {
	i, ok := p.index[supplier]
	return i, ok
}

// Weight returns the number of buyers shared by two suppliers
func (p *SupplierProjection) Weight(a, b string) float64 {
	i, okA := p.index[a]
	j, okB := p.index[b]
	if !okA || !okB || i == j {
		return 0
	}
	if w, ok := p.graph.Weight(int64(i), int64(j)); ok {
		return w
	}
	return 0
}

// Degree returns the number of suppliers sharing a buyer with supplier
func (p *SupplierProjection) Degree(supplier string) int {
	i, ok := p.index[supplier]
	if !ok {
		return 0
	}
	return p.graph.From(int64(i)).Len()
}

// WeightedDegree returns the sum of projection weights incident to supplier
func (p *SupplierProjection) WeightedDegree(supplier string) float64 {
	i, ok := p.index[supplier]
	if !ok {
		return 0
	}
	total := 0.0
	nodes := p.graph.From(int64(i))
	for nodes.Next() {
		total += p.graph.WeightedEdge(int64(i), nodes.Node().ID()).Weight()
	}
	return total
}

// Stats summarizes the projection against its source bipartite graph
func (p *SupplierProjection) Stats(bg *BipartiteGraph) ProjectionStats {
	stats := ProjectionStats{
		Buyers:          len(bg.buyers),
		Suppliers:       len(p.suppliers),
		BipartiteEdges:  bg.NumEdges(),
		ProjectionEdges: len(p.edges),
	}
	for i := range p.suppliers {
		if p.graph.From(int64(i)).Len() == 0 {
			stats.IsolatedSuppliers++
		}
	}
	for _, e := range p.edges {
		if e.Weight > stats.MaxWeight {
			stats.MaxWeight = e.Weight
		}
	}
	return stats
}

// ToLouvainGraph converts the projection into the clustering graph format.
// Node i of the result is supplier p.Suppliers()[i].
func (p *SupplierProjection) ToLouvainGraph() (*louvain.Graph, error) {
	g := louvain.NewGraph(len(p.suppliers))
	for _, e := range p.edges {
		if err := g.AddEdge(e.From, e.To, e.Weight); err != nil {
			return nil, fmt.Errorf("failed to add projected edge %d-%d: %w", e.From, e.To, err)
		}
	}
	return g, nil
}
