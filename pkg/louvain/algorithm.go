package louvain

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Result represents the algorithm output
type Result struct {
	Seed        int64       `json:"seed"`
	Membership  []int       `json:"membership"`  // original node -> community
	Communities [][]int     `json:"communities"` // community -> original nodes, ascending
	Modularity  float64     `json:"modularity"`
	NumLevels   int         `json:"num_levels"`
	Levels      []LevelInfo `json:"levels"`
	Statistics  Statistics  `json:"statistics"`
}

// LevelInfo contains information about each hierarchical level
type LevelInfo struct {
	Level          int     `json:"level"`
	Nodes          int     `json:"nodes"`
	Modularity     float64 `json:"modularity"`
	NumCommunities int     `json:"num_communities"`
	NumMoves       int     `json:"num_moves"`
	Iterations     int     `json:"iterations"`
	RuntimeMS      int64   `json:"runtime_ms"`
}

// Statistics contains algorithm performance metrics
type Statistics struct {
	TotalIterations int   `json:"total_iterations"`
	TotalMoves      int   `json:"total_moves"`
	RuntimeMS       int64 `json:"runtime_ms"`
}

// Community represents the state of communities at one level
type Community struct {
	NodeToCommunity  []int     // nodeToComm[i] = community ID of node i
	CommunityWeights []float64 // commWeights[c] = total degree of community c
	NumCommunities   int       // number of community slots
}

// NewCommunity initializes each node in its own community
func NewCommunity(graph *Graph) *Community {
	n := graph.NumNodes
	comm := &Community{
		NodeToCommunity:  make([]int, n),
		CommunityWeights: make([]float64, n),
		NumCommunities:   n,
	}

	for i := 0; i < n; i++ {
		comm.NodeToCommunity[i] = i
		comm.CommunityWeights[i] = graph.Degrees[i]
	}

	return comm
}

// Compact relabels non-empty communities 0..k-1 in order of their lowest node
func (c *Community) Compact() ([]int, int) {
	relabel := make(map[int]int)
	labels := make([]int, len(c.NodeToCommunity))
	for node, comm := range c.NodeToCommunity {
		id, ok := relabel[comm]
		if !ok {
			id = len(relabel)
			relabel[comm] = id
		}
		labels[node] = id
	}
	return labels, len(relabel)
}

// neighborWeights accumulates edge weight from node to each neighboring
// community, excluding self-loops. Communities keep first-seen order so that
// tie-breaking only depends on the graph and the node order.
type neighborWeights struct {
	order  []int
	weight map[int]float64
}

func newNeighborWeights() *neighborWeights {
	return &neighborWeights{weight: make(map[int]float64)}
}

func (nw *neighborWeights) reset() {
	nw.order = nw.order[:0]
	for k := range nw.weight {
		delete(nw.weight, k)
	}
}

func (nw *neighborWeights) add(comm int, w float64) {
	if _, ok := nw.weight[comm]; !ok {
		nw.order = append(nw.order, comm)
	}
	nw.weight[comm] += w
}

// OneLevel performs local moving until no node changes community. m is the
// total edge weight of the original graph.
func OneLevel(ctx context.Context, graph *Graph, comm *Community, m, resolution float64, rng *rand.Rand, maxIterations int, logger zerolog.Logger) (bool, int, int, error) {
	improvement := false
	totalMoves := 0
	iterations := 0

	if m == 0 || graph.NumNodes == 0 {
		return false, 0, 0, nil
	}

	nodes := rng.Perm(graph.NumNodes)
	nw := newNeighborWeights()
	twoM2 := 2 * m * m

	for maxIterations <= 0 || iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			return improvement, totalMoves, iterations, err
		}
		iterations++
		moves := 0

		for _, node := range nodes {
			oldComm := comm.NodeToCommunity[node]
			bestComm := oldComm
			bestGain := 0.0

			nw.reset()
			neighbors, weights := graph.GetNeighbors(node)
			for i, neighbor := range neighbors {
				if neighbor == node {
					continue
				}
				nw.add(comm.NodeToCommunity[neighbor], weights[i])
			}

			degree := graph.Degrees[node]
			comm.CommunityWeights[oldComm] -= degree
			removeCost := -nw.weight[oldComm]/m + resolution*(comm.CommunityWeights[oldComm]*degree)/twoM2

			for _, target := range nw.order {
				gain := removeCost + nw.weight[target]/m - resolution*(comm.CommunityWeights[target]*degree)/twoM2
				if gain > bestGain {
					bestGain = gain
					bestComm = target
				}
			}

			comm.CommunityWeights[bestComm] += degree
			if bestComm != oldComm {
				comm.NodeToCommunity[node] = bestComm
				moves++
			}
		}

		totalMoves += moves
		if moves > 0 {
			improvement = true
		}

		if logger.GetLevel() <= zerolog.DebugLevel {
			logger.Debug().
				Int("iteration", iterations).
				Int("moves", moves).
				Msg("Local optimization pass")
		}

		if moves == 0 {
			break
		}
	}

	return improvement, totalMoves, iterations, nil
}

// AggregateGraph creates a super-graph whose nodes are the given communities.
// Intra-community weight becomes a self-loop.
func AggregateGraph(graph *Graph, labels []int, numCommunities int) (*Graph, error) {
	if numCommunities <= 0 {
		return nil, fmt.Errorf("no valid communities found")
	}

	superEdges := make(map[[2]int]float64)
	for u := 0; u < graph.NumNodes; u++ {
		neighbors, weights := graph.GetNeighbors(u)
		for i, v := range neighbors {
			if v < u {
				continue // visit each undirected edge once
			}
			a, b := labels[u], labels[v]
			if a > b {
				a, b = b, a
			}
			superEdges[[2]int{a, b}] += weights[i]
		}
	}

	keys := make([][2]int, 0, len(superEdges))
	for k := range superEdges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	superGraph := NewGraph(numCommunities)
	for _, k := range keys {
		if err := superGraph.AddEdge(k[0], k[1], superEdges[k]); err != nil {
			return nil, err
		}
	}

	return superGraph, nil
}

// Run executes the complete Louvain algorithm with the configured seed and
// resolution. The input graph is never modified.
func Run(ctx context.Context, graph *Graph, config *Config) (*Result, error) {
	startTime := time.Now()
	logger := config.CreateLogger()
	seed := config.RandomSeed()
	resolution := config.Resolution()

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	result := &Result{
		Seed:       seed,
		Membership: make([]int, graph.NumNodes),
		Levels:     make([]LevelInfo, 0),
	}

	for i := range result.Membership {
		result.Membership[i] = i
	}

	if graph.NumNodes <= 1 || graph.TotalWeight == 0 {
		result.Communities = groupMembers(result.Membership, graph.NumNodes)
		result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()
		return result, nil
	}

	logger.Debug().
		Int64("seed", seed).
		Int("nodes", graph.NumNodes).
		Float64("total_weight", graph.TotalWeight).
		Msg("Starting Louvain algorithm")

	rng := rand.New(rand.NewSource(seed))
	m := graph.TotalWeight
	current := graph
	modularity := Modularity(graph, result.Membership, resolution)

	for level := 0; level < config.MaxLevels(); level++ {
		levelStart := time.Now()

		comm := NewCommunity(current)
		improvement, moves, iterations, err := OneLevel(ctx, current, comm, m, resolution, rng, config.MaxIterations(), logger)
		if err != nil {
			return nil, fmt.Errorf("local optimization failed at level %d: %w", level, err)
		}

		labels, numCommunities := comm.Compact()
		for i, node := range result.Membership {
			result.Membership[i] = labels[node]
		}

		newModularity := Modularity(graph, result.Membership, resolution)

		result.Levels = append(result.Levels, LevelInfo{
			Level:          level,
			Nodes:          current.NumNodes,
			Modularity:     newModularity,
			NumCommunities: numCommunities,
			NumMoves:       moves,
			Iterations:     iterations,
			RuntimeMS:      time.Since(levelStart).Milliseconds(),
		})
		result.Statistics.TotalMoves += moves
		result.Statistics.TotalIterations += iterations

		if config.EnableProgress() {
			logger.Info().
				Int("level", level).
				Int("nodes", current.NumNodes).
				Int("communities", numCommunities).
				Float64("modularity", newModularity).
				Msg("Level completed")
		}

		if !improvement || newModularity-modularity <= config.Threshold() {
			break
		}
		modularity = newModularity

		current, err = AggregateGraph(current, labels, numCommunities)
		if err != nil {
			return nil, fmt.Errorf("aggregation failed at level %d: %w", level, err)
		}
	}

	result.NumLevels = len(result.Levels)
	result.Modularity = Modularity(graph, result.Membership, resolution)
	result.Communities = groupMembers(result.Membership, countCommunities(result.Membership))
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Debug().
		Int64("seed", seed).
		Int("levels", result.NumLevels).
		Int("communities", len(result.Communities)).
		Float64("modularity", result.Modularity).
		Msg("Louvain algorithm completed")

	return result, nil
}

func countCommunities(membership []int) int {
	k := 0
	for _, c := range membership {
		if c+1 > k {
			k = c + 1
		}
	}
	return k
}

func groupMembers(membership []int, k int) [][]int {
	communities := make([][]int, k)
	for node, c := range membership {
		communities[c] = append(communities[c], node)
	}
	return communities
}
