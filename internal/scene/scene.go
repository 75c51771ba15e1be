// Package scene holds committed tile meshes for an external renderer.
package scene

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pissang/little-big-city/internal/mesh"
)

// Node groups the meshes of one layer.
type Node string

const (
	NodeEarth     Node = "earth"
	NodeBuildings Node = "buildings"
	NodeRoads     Node = "roads"
	NodeWater     Node = "water"
	NodeClouds    Node = "clouds"
)

var Nodes = []Node{NodeEarth, NodeBuildings, NodeRoads, NodeWater, NodeClouds}

func ParseNode(s string) (Node, error) {
	for _, n := range Nodes {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown node %q", s)
}

type Material struct {
	Name       string     `json:"name"`
	Color      string     `json:"color"`
	Roughness  float64    `json:"roughness"`
	DiffuseMap string     `json:"diffuseMap,omitempty"`
	UVRepeat   [2]float64 `json:"uvRepeat"`
}

// Renderer receives finished meshes. Commit replaces any mesh previously
// committed under the same node and key; the renderer takes ownership of m.
// SetMaterial restyles every mesh already under node and SetVisible hides
// or shows the node without dropping its meshes.
type Renderer interface {
	Commit(node Node, key string, m *mesh.Buffers, mat Material)
	RemoveAll(node Node)
	SetMaterial(node Node, mat Material)
	SetVisible(node Node, visible bool)
}

type Entry struct {
	Node      Node
	Key       string
	Mesh      *mesh.Buffers
	Material  Material
	Version   uint64
	UpdatedAt time.Time
}

// Summary describes an entry without its buffers.
type Summary struct {
	Node       Node      `json:"node"`
	Key        string    `json:"key"`
	Material   Material  `json:"material"`
	Vertices   int       `json:"vertices"`
	Triangles  int       `json:"triangles"`
	IndexWidth int       `json:"indexWidth"`
	Visible    bool      `json:"visible"`
	Version    uint64    `json:"version"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store is an in-memory Renderer served over the API.
type Store struct {
	mu      sync.RWMutex
	nodes   map[Node]map[string]*Entry
	hidden  map[Node]bool
	version uint64
	now     func() time.Time
}

var _ Renderer = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		nodes:  make(map[Node]map[string]*Entry, len(Nodes)),
		hidden: make(map[Node]bool),
		now:    time.Now,
	}
}

func (s *Store) Commit(node Node, key string, m *mesh.Buffers, mat Material) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	entries, ok := s.nodes[node]
	if !ok {
		entries = make(map[string]*Entry)
		s.nodes[node] = entries
	}
	entries[key] = &Entry{
		Node:      node,
		Key:       key,
		Mesh:      m,
		Material:  mat,
		Version:   s.version,
		UpdatedAt: s.now(),
	}
}

func (s *Store) RemoveAll(node Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.nodes[node]) > 0 {
		s.version++
	}
	delete(s.nodes, node)
}

func (s *Store) SetMaterial(node Node, mat Material) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.nodes[node]
	if len(entries) == 0 {
		return
	}
	s.version++
	now := s.now()
	for _, e := range entries {
		e.Material = mat
		e.Version = s.version
		e.UpdatedAt = now
	}
}

func (s *Store) SetVisible(node Node, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hidden[node] == !visible {
		return
	}
	s.version++
	if visible {
		delete(s.hidden, node)
	} else {
		s.hidden[node] = true
	}
}

func (s *Store) Visible(node Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.hidden[node]
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Entry(node Node, key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.nodes[node][key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of entries under node.
func (s *Store) Len(node Node) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes[node])
}

// Snapshot lists every entry ordered by node then key.
func (s *Store) Snapshot() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0)
	for _, node := range Nodes {
		for _, e := range s.nodes[node] {
			out = append(out, Summary{
				Node:       e.Node,
				Key:        e.Key,
				Material:   e.Material,
				Vertices:   e.Mesh.VertexCount(),
				Triangles:  e.Mesh.TriangleCount(),
				IndexWidth: e.Mesh.IndexWidth(),
				Visible:    !s.hidden[node],
				Version:    e.Version,
				UpdatedAt:  e.UpdatedAt,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Node != out[j].Node {
			return nodeOrder(out[i].Node) < nodeOrder(out[j].Node)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func nodeOrder(n Node) int {
	for i, node := range Nodes {
		if node == n {
			return i
		}
	}
	return len(Nodes)
}
