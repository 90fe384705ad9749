// Package vectorindex implements the fixed-dimension HNSW
// approximate-nearest-neighbor structure of spec §4.2: cosine
// distance, add/batch-add/search/resize/save/load/reset, with a
// worker boundary (worker.go) isolating it from the host.
//
// The graph algorithm (Insert/searchLayer/selectNeighborsHeuristic/
// Search, gob Save/Load) is adapted directly from pkg/index/hnsw.go
// in the teacher repo, generalized from string node ids to this
// spec's integer labels and given a fixed dimensionality with
// DimensionMismatch validation the teacher's version lacks.
package vectorindex

import (
	"container/heap"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"sync"

	"github.com/ragstore/engine/internal/ragerr"
)

// Config configures a Graph, matching the parameters named in spec
// §4.2.
type Config struct {
	Dimensions     int
	MaxElements    int
	M              int
	EfConstruction int
	Seed           int64
}

// DefaultConfig returns the spec's named defaults: M=16,
// efConstruction=200, seed=100.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions:     dimensions,
		MaxElements:    10000,
		M:              16,
		EfConstruction: 200,
		Seed:           100,
	}
}

type node struct {
	Label     uint64
	Vector    []float32
	Level     int
	Neighbors [][]uint64
	Deleted   bool
}

// Graph is an HNSW index. Its methods serialize on an internal
// RWMutex, so direct concurrent calls are safe; Worker (worker.go)
// is still the boundary the rest of the engine talks to,
// matching spec §4.2's "single-writer by construction of its worker"
// guarantee (§5).
type Graph struct {
	cfg        Config
	maxM       int
	ml         float64
	nodes      map[uint64]*node
	entryPoint uint64
	hasEntry   bool
	ef         int
	rng        *rand.Rand
	mu         sync.RWMutex
}

// NewGraph constructs an empty Graph for the given configuration.
func NewGraph(cfg Config) *Graph {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.Seed == 0 {
		cfg.Seed = 100
	}
	return &Graph{
		cfg:   cfg,
		maxM:  cfg.M * 2,
		ml:    1.0 / math.Log(2.0),
		nodes: make(map[uint64]*node),
		ef:    cfg.EfConstruction,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Dimensions returns the fixed vector width this graph was configured
// for.
func (g *Graph) Dimensions() int { return g.cfg.Dimensions }

// SetEf adjusts the query-time candidate list size.
func (g *Graph) SetEf(ef int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ef > 0 {
		g.ef = ef
	}
}

func (g *Graph) validateDimension(vec []float32) error {
	if len(vec) != g.cfg.Dimensions {
		return fmt.Errorf("%w: expected=%d got=%d", ragerr.ErrDimensionMismatch, g.cfg.Dimensions, len(vec))
	}
	return nil
}

// Add inserts a single labeled vector. Duplicate labels are rejected,
// per spec §4.2's "duplicate labels are rejected".
func (g *Graph) Add(label uint64, vector []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(label, vector)
}

func (g *Graph) addLocked(label uint64, vector []float32) error {
	if err := g.validateDimension(vector); err != nil {
		return err
	}
	if _, exists := g.nodes[label]; exists {
		return fmt.Errorf("label %d already exists", label)
	}
	if g.cfg.MaxElements > 0 && len(g.nodes) >= g.cfg.MaxElements {
		return fmt.Errorf("%w: max elements %d reached", ragerr.ErrIndexCapacity, g.cfg.MaxElements)
	}

	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)

	level := g.selectLevel()
	n := &node{
		Label:     label,
		Vector:    vecCopy,
		Level:     level,
		Neighbors: make([][]uint64, level+1),
	}
	for i := range n.Neighbors {
		n.Neighbors[i] = make([]uint64, 0)
	}
	g.nodes[label] = n

	if !g.hasEntry {
		g.entryPoint = label
		g.hasEntry = true
		return nil
	}

	currNearest := []uint64{g.entryPoint}
	entryNode := g.nodes[g.entryPoint]
	for lc := entryNode.Level; lc > level; lc-- {
		currNearest = g.searchLayerClosest(vector, currNearest, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		m := g.cfg.M
		if lc == 0 {
			m = g.maxM
		}
		candidates := g.searchLayer(vector, currNearest, g.cfg.EfConstruction, lc)
		neighbors := g.selectNeighbors(candidates, m)
		n.Neighbors[lc] = neighbors

		for _, nb := range neighbors {
			g.addConnection(nb, label, lc)
			nbNode := g.nodes[nb]
			maxConn := g.cfg.M
			if lc == 0 {
				maxConn = g.maxM
			}
			if lc < len(nbNode.Neighbors) && len(nbNode.Neighbors[lc]) > maxConn {
				nbNode.Neighbors[lc] = g.selectNeighbors(nbNode.Neighbors[lc], maxConn)
			}
		}
		currNearest = neighbors
	}

	if level > g.nodes[g.entryPoint].Level {
		g.entryPoint = label
	}
	return nil
}

// AddBatch inserts multiple labeled vectors in the order given.
func (g *Graph) AddBatch(labels []uint64, vectors [][]float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, label := range labels {
		if err := g.addLocked(label, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) selectLevel() int {
	level := 0
	for g.rng.Float64() < 0.5 {
		level++
		if level > 16 {
			break
		}
	}
	return level
}

func (g *Graph) addConnection(from, to uint64, layer int) {
	n, ok := g.nodes[from]
	if !ok || layer >= len(n.Neighbors) {
		return
	}
	for _, existing := range n.Neighbors[layer] {
		if existing == to {
			return
		}
	}
	n.Neighbors[layer] = append(n.Neighbors[layer], to)
}

func (g *Graph) dist(a, b []float32) float32 { return CosineDistance(a, b) }

func (g *Graph) searchLayer(query []float32, entryPoints []uint64, ef int, layer int) []uint64 {
	visited := make(map[uint64]bool)
	candidates := &distHeap{}
	dynamic := &distHeap{}

	for _, p := range entryPoints {
		d := g.dist(query, g.nodes[p].Vector)
		heap.Push(candidates, &heapItem{label: p, dist: d})
		heap.Push(dynamic, &heapItem{label: p, dist: -d})
		visited[p] = true
	}

	for candidates.Len() > 0 {
		if dynamic.Len() > 0 {
			lowerBound := (*candidates)[0].dist
			if lowerBound > -(*dynamic)[0].dist {
				break
			}
		}
		current := heap.Pop(candidates).(*heapItem)
		currentNode := g.nodes[current.label]
		if layer >= len(currentNode.Neighbors) {
			continue
		}
		for _, nb := range currentNode.Neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := g.dist(query, g.nodes[nb].Vector)
			if dynamic.Len() < ef || d < -(*dynamic)[0].dist {
				heap.Push(candidates, &heapItem{label: nb, dist: d})
				heap.Push(dynamic, &heapItem{label: nb, dist: -d})
				if dynamic.Len() > ef {
					heap.Pop(dynamic)
				}
			}
		}
	}

	result := make([]uint64, 0, dynamic.Len())
	for dynamic.Len() > 0 {
		result = append(result, heap.Pop(dynamic).(*heapItem).label)
	}
	for i := 0; i < len(result)/2; i++ {
		result[i], result[len(result)-1-i] = result[len(result)-1-i], result[i]
	}
	return result
}

func (g *Graph) searchLayerClosest(query []float32, entryPoints []uint64, num, layer int) []uint64 {
	candidates := g.searchLayer(query, entryPoints, num, layer)
	if len(candidates) > num {
		return candidates[:num]
	}
	return candidates
}

// selectNeighbors prunes candidates to m entries. candidates arrives
// already ordered nearest-first by searchLayer, so a straight
// truncation is the heuristic selection pkg/index/hnsw.go uses too.
func (g *Graph) selectNeighbors(candidates []uint64, m int) []uint64 {
	if len(candidates) <= m {
		return candidates
	}
	return candidates[:m]
}

// Search returns up to k labels sorted by ascending cosine distance.
// Returns empty slices if the graph has no vectors, per spec §4.2.
func (g *Graph) Search(query []float32, k int) ([]uint64, []float32, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if err := g.validateDimension(query); err != nil {
		return nil, nil, err
	}
	if !g.hasEntry {
		return []uint64{}, []float32{}, nil
	}

	entryNode := g.nodes[g.entryPoint]
	currNearest := []uint64{g.entryPoint}
	for layer := entryNode.Level; layer > 0; layer-- {
		currNearest = g.searchLayerClosest(query, currNearest, 1, layer)
	}

	ef := g.ef
	if ef < k {
		ef = k
	}
	candidates := g.searchLayer(query, currNearest, ef, 0)

	type scored struct {
		label uint64
		dist  float32
	}
	results := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		n := g.nodes[c]
		if n == nil || n.Deleted {
			continue
		}
		results = append(results, scored{label: c, dist: g.dist(query, n.Vector)})
	}
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].dist < results[i].dist {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	limit := k
	if limit > len(results) {
		limit = len(results)
	}
	labels := make([]uint64, limit)
	distances := make([]float32, limit)
	for i := 0; i < limit; i++ {
		labels[i] = results[i].label
		distances[i] = results[i].dist
	}
	return labels, distances, nil
}

// Size returns the number of non-deleted vectors.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, nd := range g.nodes {
		if !nd.Deleted {
			n++
		}
	}
	return n
}

// Reset returns the graph to an empty state with configuration
// preserved; no file I/O, matching spec §4.2.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[uint64]*node)
	g.hasEntry = false
	g.entryPoint = 0
}

// Stats reports index health, the supplemented "inspection operation"
// of SPEC_FULL.md, grounded on pkg/index/hnsw.go's Stats().
type Stats struct {
	TotalNodes   int
	ActiveNodes  int
	DeletedNodes int
	TotalEdges   int
	MaxLevel     int
}

func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var st Stats
	st.TotalNodes = len(g.nodes)
	for _, n := range g.nodes {
		if n.Deleted {
			continue
		}
		st.ActiveNodes++
		if n.Level > st.MaxLevel {
			st.MaxLevel = n.Level
		}
		for _, nb := range n.Neighbors {
			st.TotalEdges += len(nb)
		}
	}
	st.DeletedNodes = st.TotalNodes - st.ActiveNodes
	return st
}

// gobGraph is the on-disk shape of a graph: its config, entry point,
// and every node with its uint64 label, encoded with the teacher's
// gob-of-struct approach (pkg/index/hnsw.go's Save/Load).
type gobGraph struct {
	Dimensions     int
	M              int
	EfConstruction int
	Seed           int64
	EntryPoint     uint64
	HasEntry       bool
	Nodes          []node
}

// Save serializes the graph with gob, matching the teacher's
// persistence mechanism.
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	gg := gobGraph{
		Dimensions:     g.cfg.Dimensions,
		M:              g.cfg.M,
		EfConstruction: g.cfg.EfConstruction,
		Seed:           g.cfg.Seed,
		EntryPoint:     g.entryPoint,
		HasEntry:       g.hasEntry,
		Nodes:          make([]node, 0, len(g.nodes)),
	}
	for _, n := range g.nodes {
		gg.Nodes = append(gg.Nodes, *n)
	}
	return gob.NewEncoder(w).Encode(gg)
}

// Load replaces the graph's contents with a previously Saved image.
// The configured Dimensions must match or Load fails with
// DimensionMismatch.
func (g *Graph) Load(r io.Reader) error {
	var gg gobGraph
	if err := gob.NewDecoder(r).Decode(&gg); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if gg.Dimensions != g.cfg.Dimensions {
		return fmt.Errorf("%w: expected=%d got=%d", ragerr.ErrDimensionMismatch, g.cfg.Dimensions, gg.Dimensions)
	}

	g.cfg.M = gg.M
	g.maxM = gg.M * 2
	g.cfg.EfConstruction = gg.EfConstruction
	g.cfg.Seed = gg.Seed
	g.entryPoint = gg.EntryPoint
	g.hasEntry = gg.HasEntry
	g.nodes = make(map[uint64]*node, len(gg.Nodes))
	for i := range gg.Nodes {
		n := gg.Nodes[i]
		g.nodes[n.Label] = &n
	}
	return nil
}

// labelKey renders a label the way the gob-encoded node keys were
// shaped in the teacher's string-id version; retained as a small
// helper for log messages that want a stable string form.
func labelKey(label uint64) string { return strconv.FormatUint(label, 10) }

type heapItem struct {
	label uint64
	dist  float32
}

type distHeap []*heapItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// CosineDistance computes 1 - cosine similarity.
func CosineDistance(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	sim := dot / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
	return 1.0 - sim
}
