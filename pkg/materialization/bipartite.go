// Package materialization turns the buyer-supplier edge table into graphs:
// a role-tagged bipartite graph and its weighted projection onto suppliers.
package materialization

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// Role distinguishes the two node namespaces of the bipartite graph
type Role int

const (
	RoleBuyer Role = iota
	RoleSupplier
)

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSupplier:
		return "supplier"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// NodeKey is a role-qualified identifier. A buyer and a supplier sharing the
// same raw identifier are distinct nodes.
type NodeKey struct {
	Role Role
	ID   string
}

// BuyerNode returns the key of a buyer node
func BuyerNode(id string) NodeKey { return NodeKey{Role: RoleBuyer, ID: id} }

// SupplierNode returns the key of a supplier node
func SupplierNode(id string) NodeKey { return NodeKey{Role: RoleSupplier, ID: id} }

func (k NodeKey) String() string {
	return fmt.Sprintf("%s:%s", k.Role, k.ID)
}

// BipartiteGraph holds one unweighted edge per distinct buyer-supplier pair
type BipartiteGraph struct {
	graph     *simple.UndirectedGraph
	ids       map[NodeKey]int64
	keys      []NodeKey
	buyers    []string // first-appearance order
	suppliers []string // first-appearance order

	// supplier indices (into suppliers) linked to each buyer, in edge order
	buyerSuppliers map[string][]int
}

// BuildBipartite creates the bipartite graph of an edge table
func BuildBipartite(edges []models.Edge) *BipartiteGraph {
	bg := &BipartiteGraph{
		graph:          simple.NewUndirectedGraph(),
		ids:            make(map[NodeKey]int64),
		buyerSuppliers: make(map[string][]int),
	}

	supplierIndex := make(map[string]int)
	for _, e := range edges {
		buyer := bg.addNode(BuyerNode(e.BuyerID))
		supplier := bg.addNode(SupplierNode(e.SupplierID))

		if _, ok := supplierIndex[e.SupplierID]; !ok {
			supplierIndex[e.SupplierID] = len(bg.suppliers)
			bg.suppliers = append(bg.suppliers, e.SupplierID)
		}

		if bg.graph.HasEdgeBetween(buyer, supplier) {
			continue
		}
		bg.graph.SetEdge(bg.graph.NewEdge(simple.Node(buyer), simple.Node(supplier)))
		bg.buyerSuppliers[e.BuyerID] = append(bg.buyerSuppliers[e.BuyerID], supplierIndex[e.SupplierID])
	}

	return bg
}

func (bg *BipartiteGraph) addNode(key NodeKey) int64 {
	if id, ok := bg.ids[key]; ok {
		return id
	}
	id := int64(len(bg.keys))
	bg.ids[key] = id
	bg.keys = append(bg.keys, key)
	bg.graph.AddNode(simple.Node(id))
	if key.Role == RoleBuyer {
		bg.buyers = append(bg.buyers, key.ID)
	}
	return id
}

// Buyers returns buyer identifiers in first-appearance order
func (bg *BipartiteGraph) Buyers() []string { return bg.buyers }

// Suppliers returns supplier identifiers in first-appearance order
func (bg *BipartiteGraph) Suppliers() []string { return bg.suppliers }

// NumNodes counts buyer and supplier nodes
func (bg *BipartiteGraph) NumNodes() int { return bg.graph.Nodes().Len() }

// NumEdges counts distinct buyer-supplier pairs
func (bg *BipartiteGraph) NumEdges() int { return bg.graph.Edges().Len() }

// Has reports whether a role-qualified node exists
func (bg *BipartiteGraph) Has(key NodeKey) bool {
	_, ok := bg.ids[key]
	return ok
}

// Degree returns the number of distinct partners of a node
func (bg *BipartiteGraph) Degree(key NodeKey) int {
	id, ok := bg.ids[key]
	if !ok {
		return 0
	}
	return bg.graph.From(id).Len()
}
