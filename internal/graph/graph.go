// Package graph implements the named dependency graph used to validate
// registrations and to compute teardown order.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateNode is returned when the same name is added twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode is returned when an edge references a name that was
	// never added.
	ErrUnknownNode = errors.New("unknown node")

	// ErrSelfDependency is returned when a node declares an edge to itself.
	ErrSelfDependency = errors.New("self dependency")

	// ErrCycle is returned when the graph contains a cycle. The error message
	// includes the full chain.
	ErrCycle = errors.New("dependency cycle detected")
)

// Graph records directed dependency edges between named nodes. An edge
// from -> to means "from depends on to". Insertion order of nodes and edges
// is preserved so that traversal results are deterministic.
type Graph struct {
	nodes map[string]struct{}
	order []string
	edges map[string][]string
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[string][]string),
	}
}

// AddNode registers a named node.
func (g *Graph) AddNode(name string) error {
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	g.nodes[name] = struct{}{}
	g.order = append(g.order, name)
	return nil
}

// AddEdge declares that from depends on to. Both endpoints are checked for
// existence during Validate, not here, so edges may be declared before all
// nodes are known.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfDependency, from)
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// Dependencies returns the declared dependencies of name, in declaration
// order.
func (g *Graph) Dependencies(name string) []string {
	deps := g.edges[name]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Validate checks that every edge endpoint exists and that the graph is
// acyclic.
func (g *Graph) Validate() error {
	for from, tos := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, from)
		}
		for _, to := range tos {
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("%w: %s (dependency of %s)", ErrUnknownNode, to, from)
			}
		}
	}

	states := make(map[string]visitState, len(g.order))
	for _, name := range g.order {
		if _, err := g.visitCollect(name, states, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// TopoOrder returns every node ordered so that dependents appear strictly
// before their dependencies. This is the teardown order: destroying nodes
// front to back never destroys a dependency before one of its dependents.
func (g *Graph) TopoOrder() ([]string, error) {
	states := make(map[string]visitState, len(g.order))
	post := make([]string, 0, len(g.order))
	for _, name := range g.order {
		var err error
		post, err = g.visitCollect(name, states, nil, post)
		if err != nil {
			return nil, err
		}
	}

	// post holds dependencies before dependents; reverse for teardown.
	out := make([]string, len(post))
	for i, name := range post {
		out[len(post)-1-i] = name
	}
	return out, nil
}

func (g *Graph) visitCollect(name string, states map[string]visitState, stack []string, post []string) ([]string, error) {
	switch states[name] {
	case visiting:
		return nil, g.cycleError(name, stack)
	case visited:
		return post, nil
	}

	states[name] = visiting
	stack = append(stack, name)

	for _, dep := range g.edges[name] {
		var err error
		post, err = g.visitCollect(dep, states, stack, post)
		if err != nil {
			return nil, err
		}
	}

	states[name] = visited
	return append(post, name), nil
}

func (g *Graph) cycleError(name string, stack []string) error {
	chain := make([]string, len(stack)+1)
	copy(chain, stack)
	chain[len(stack)] = name
	return fmt.Errorf("%w: %s", ErrCycle, strings.Join(chain, " -> "))
}
