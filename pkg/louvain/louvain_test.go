package louvain

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// TestGraph describes a graph and the community counts Louvain may produce
type TestGraph struct {
	Name        string
	Graph       *Graph
	ExpectedMin int // Minimum expected communities
	ExpectedMax int // Maximum expected communities
	Description string
}

func mustGraph(t testing.TB, n int, edges [][3]float64) *Graph {
	t.Helper()
	g := NewGraph(n)
	for _, e := range edges {
		require.NoError(t, g.AddEdge(int(e[0]), int(e[1]), e[2]))
	}
	return g
}

func twoTriangles(t testing.TB) *Graph {
	return mustGraph(t, 6, [][3]float64{
		{0, 1, 1}, {1, 2, 1}, {0, 2, 1},
		{3, 4, 1}, {4, 5, 1}, {3, 5, 1},
	})
}

// ringOfCliques joins k cliques of size s in a ring by single edges
func ringOfCliques(t testing.TB, k, s int) *Graph {
	var edges [][3]float64
	for c := 0; c < k; c++ {
		base := c * s
		for i := 0; i < s; i++ {
			for j := i + 1; j < s; j++ {
				edges = append(edges, [3]float64{float64(base + i), float64(base + j), 1})
			}
		}
		next := ((c + 1) % k) * s
		edges = append(edges, [3]float64{float64(base), float64(next + 1), 1})
	}
	return mustGraph(t, k*s, edges)
}

func createTestGraphs(t testing.TB) []TestGraph {
	return []TestGraph{
		{
			Name:        "Empty",
			Graph:       NewGraph(0),
			ExpectedMin: 0,
			ExpectedMax: 0,
			Description: "Empty graph with no nodes",
		},
		{
			Name:        "SingleNode",
			Graph:       NewGraph(1),
			ExpectedMin: 1,
			ExpectedMax: 1,
			Description: "Graph with single isolated node",
		},
		{
			Name:        "TwoIsolated",
			Graph:       NewGraph(2),
			ExpectedMin: 2,
			ExpectedMax: 2,
			Description: "Two isolated nodes with no edges",
		},
		{
			Name:        "TwoConnected",
			Graph:       mustGraph(t, 2, [][3]float64{{0, 1, 1}}),
			ExpectedMin: 1,
			ExpectedMax: 1,
			Description: "Two nodes connected by single edge",
		},
		{
			Name:        "TwoTriangles",
			Graph:       twoTriangles(t),
			ExpectedMin: 2,
			ExpectedMax: 2,
			Description: "Two disconnected triangles",
		},
		{
			Name: "BridgedTriangles",
			Graph: mustGraph(t, 6, [][3]float64{
				{0, 1, 1}, {1, 2, 1}, {0, 2, 1},
				{3, 4, 1}, {4, 5, 1}, {3, 5, 1},
				{2, 3, 1},
			}),
			ExpectedMin: 2,
			ExpectedMax: 2,
			Description: "Two triangles joined by a bridge",
		},
		{
			Name:        "RingOfCliques",
			Graph:       ringOfCliques(t, 6, 5),
			ExpectedMin: 3,
			ExpectedMax: 6,
			Description: "Six 5-cliques joined in a ring",
		},
	}
}

func quietConfig(seed int64) *Config {
	config := NewConfig()
	config.Set("algorithm.random_seed", seed)
	config.SetLogger(zerolog.Nop())
	return config
}

func TestRunCommunityCounts(t *testing.T) {
	for _, tg := range createTestGraphs(t) {
		t.Run(tg.Name, func(t *testing.T) {
			result, err := Run(context.Background(), tg.Graph, quietConfig(42))
			require.NoError(t, err, tg.Description)

			got := len(result.Communities)
			assert.GreaterOrEqual(t, got, tg.ExpectedMin, tg.Description)
			assert.LessOrEqual(t, got, tg.ExpectedMax, tg.Description)

			// every node lands in exactly one community
			seen := make(map[int]bool)
			for c, members := range result.Communities {
				assert.NotEmpty(t, members, "community %d is empty", c)
				for _, node := range members {
					assert.False(t, seen[node], "node %d assigned twice", node)
					seen[node] = true
					assert.Equal(t, c, result.Membership[node])
				}
			}
			assert.Len(t, seen, tg.Graph.NumNodes)
		})
	}
}

func TestRunTwoTriangles(t *testing.T) {
	for _, resolution := range []float64{0.5, 1.0, 1.5, 2.0} {
		config := quietConfig(42)
		config.Set("algorithm.resolution", resolution)

		result, err := Run(context.Background(), twoTriangles(t), config)
		require.NoError(t, err)

		assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}}, result.Communities, "resolution %v", resolution)
		assert.InDelta(t, 0.5, Modularity(twoTriangles(t), result.Membership, 1.0), 1e-12)
	}
}

func TestRunTrivialGraphs(t *testing.T) {
	for _, n := range []int{0, 1} {
		result, err := Run(context.Background(), NewGraph(n), quietConfig(42))
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.Modularity)
		assert.Len(t, result.Communities, n)
		assert.Equal(t, 0, result.NumLevels)
	}
}

func TestRunDeterminism(t *testing.T) {
	graph := ringOfCliques(t, 8, 4)

	first, err := Run(context.Background(), graph, quietConfig(7))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Run(context.Background(), graph, quietConfig(7))
		require.NoError(t, err)
		assert.Equal(t, first.Membership, again.Membership)
		assert.Equal(t, first.Modularity, again.Modularity)
	}
}

func TestRunDoesNotModifyInput(t *testing.T) {
	graph := ringOfCliques(t, 4, 4)
	before := graph.Clone()

	_, err := Run(context.Background(), graph, quietConfig(42))
	require.NoError(t, err)

	assert.Equal(t, before, graph)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, ringOfCliques(t, 4, 4), quietConfig(42))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunRejectsInvalidGraph(t *testing.T) {
	graph := NewGraph(2)
	graph.Adjacency[0] = []int{5}
	graph.Weights[0] = []float64{1}

	_, err := Run(context.Background(), graph, quietConfig(42))
	assert.Error(t, err)
}

func toGonum(g *Graph) *simple.WeightedUndirectedGraph {
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < g.NumNodes; i++ {
		wg.AddNode(simple.Node(i))
	}
	for u := 0; u < g.NumNodes; u++ {
		neighbors, weights := g.GetNeighbors(u)
		for i, v := range neighbors {
			if u < v {
				wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(u), simple.Node(v), weights[i]))
			}
		}
	}
	return wg
}

func toGonumCommunities(communities [][]int) [][]graph.Node {
	out := make([][]graph.Node, len(communities))
	for c, members := range communities {
		for _, node := range members {
			out[c] = append(out[c], simple.Node(node))
		}
	}
	return out
}

func TestModularityMatchesGonum(t *testing.T) {
	graph := mustGraph(t, 7, [][3]float64{
		{0, 1, 2}, {1, 2, 1}, {0, 2, 3},
		{3, 4, 1}, {4, 5, 4}, {3, 5, 1},
		{2, 3, 0.5}, {5, 6, 2},
	})

	partitions := [][]int{
		{0, 0, 0, 1, 1, 1, 1},
		{0, 1, 2, 3, 4, 5, 6},
		{0, 0, 0, 0, 0, 0, 0},
		{0, 1, 0, 1, 0, 1, 0},
	}

	for _, membership := range partitions {
		communities := groupMembers(membership, countCommunities(membership))
		for _, resolution := range []float64{0.5, 1, 2} {
			want := community.Q(toGonum(graph), toGonumCommunities(communities), resolution)
			got := Modularity(graph, membership, resolution)
			assert.InDelta(t, want, got, 1e-9, "membership %v resolution %v", membership, resolution)
		}
	}
}

func TestModularityEmptyGraph(t *testing.T) {
	assert.Equal(t, 0.0, Modularity(NewGraph(3), []int{0, 1, 2}, 1.0))
}

func TestAggregateGraphPreservesWeight(t *testing.T) {
	graph := ringOfCliques(t, 3, 3)
	labels := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}

	super, err := AggregateGraph(graph, labels, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, super.NumNodes)
	assert.InDelta(t, graph.TotalWeight, super.TotalWeight, 1e-12)
	// each 3-clique collapses into a self-loop of weight 3
	assert.Equal(t, 3.0, super.GetEdgeWeight(0, 0))
	assert.Equal(t, 1.0, super.GetEdgeWeight(0, 1))
	assert.InDelta(t, Modularity(graph, labels, 1.0), Modularity(super, []int{0, 1, 2}, 1.0), 1e-12)

	_, err = AggregateGraph(graph, labels, 0)
	assert.Error(t, err)
}

func TestCommunityCompact(t *testing.T) {
	comm := &Community{NodeToCommunity: []int{4, 4, 1, 7, 1}}
	labels, k := comm.Compact()

	assert.Equal(t, 3, k)
	assert.Equal(t, []int{0, 0, 1, 2, 1}, labels)
}

func TestGraphAddEdge(t *testing.T) {
	g := NewGraph(3)

	require.NoError(t, g.AddEdge(0, 1, 2))
	require.NoError(t, g.AddEdge(2, 2, 1))
	assert.Error(t, g.AddEdge(0, 3, 1))
	assert.Error(t, g.AddEdge(0, 1, 0))

	assert.Equal(t, 3.0, g.TotalWeight)
	assert.Equal(t, 2.0, g.Degrees[0])
	assert.Equal(t, 2.0, g.Degrees[2], "self-loop counts twice")
	assert.Equal(t, 2, g.NumEdges())
	assert.Equal(t, 2.0, g.GetEdgeWeight(1, 0))
	assert.NoError(t, g.Validate())
}

func TestConfig(t *testing.T) {
	config := NewConfig()

	assert.Equal(t, 32, config.MaxLevels())
	assert.Equal(t, 1000, config.MaxIterations())
	assert.Equal(t, 1e-7, config.Threshold())
	assert.Equal(t, 1.0, config.Resolution())
	assert.Equal(t, int64(42), config.RandomSeed())

	config.Set("algorithm.resolution", 1.5)
	config.Set("algorithm.random_seed", int64(9))
	assert.Equal(t, 1.5, config.Resolution())
	assert.Equal(t, int64(9), config.RandomSeed())
}

func BenchmarkRun(b *testing.B) {
	graph := ringOfCliques(b, 50, 8)
	config := quietConfig(42)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Run(context.Background(), graph, config); err != nil {
			b.Fatal(err)
		}
	}
}
