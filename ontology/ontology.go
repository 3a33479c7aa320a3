// Package ontology provides the phenotype term hierarchy.
//
// The hierarchy is a rooted DAG: every term has a set of "is-a"
// parents, terms may have more than one parent, and every term is
// reachable from the single root. The graph is built once and is
// read-only afterwards, so it is safe to share between goroutines.
package ontology

import (
	"fmt"
	"sort"
)

// Graph is the term hierarchy with precomputed ancestor closures.
type Graph struct {
	root      string
	parents   map[string][]string
	children  map[string][]string
	ancestors map[string]map[string]struct{}
	altIDs    map[string]string
	obsolete  map[string]struct{}
}

// NewGraph builds a Graph from a term to parents mapping. The mapping
// must describe a DAG with exactly one root (a term with no parents);
// an edge to an unknown term, a cycle or multiple roots is an error.
func NewGraph(parents map[string][]string) (*Graph, error) {
	g := &Graph{
		parents:   make(map[string][]string, len(parents)),
		children:  make(map[string][]string, len(parents)),
		ancestors: make(map[string]map[string]struct{}, len(parents)),
		altIDs:    make(map[string]string),
		obsolete:  make(map[string]struct{}),
	}

	for term, par := range parents {
		g.parents[term] = append([]string(nil), par...)
	}

	for term, par := range g.parents {
		if len(par) == 0 {
			if g.root != "" {
				return nil, fmt.Errorf("ontology: multiple roots: %s and %s", g.root, term)
			}
			g.root = term
		}
		for _, p := range par {
			if _, ok := g.parents[p]; !ok {
				return nil, fmt.Errorf("ontology: term %s has unknown parent %s", term, p)
			}
			g.children[p] = append(g.children[p], term)
		}
	}
	if g.root == "" {
		return nil, fmt.Errorf("ontology: no root term found")
	}

	// Resolving every closure up front both validates the DAG and
	// makes all later lookups lock-free.
	for term := range g.parents {
		if _, err := g.closure(term, make(map[string]struct{})); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// closure returns the ancestor set of term, including term itself.
func (g *Graph) closure(term string, visiting map[string]struct{}) (map[string]struct{}, error) {
	if anc, ok := g.ancestors[term]; ok {
		return anc, nil
	}
	if _, ok := visiting[term]; ok {
		return nil, fmt.Errorf("ontology: cycle through term %s", term)
	}
	visiting[term] = struct{}{}

	anc := map[string]struct{}{term: {}}
	for _, p := range g.parents[term] {
		panc, err := g.closure(p, visiting)
		if err != nil {
			return nil, err
		}
		for t := range panc {
			anc[t] = struct{}{}
		}
	}
	delete(visiting, term)
	g.ancestors[term] = anc
	return anc, nil
}

// Root returns the root term of the hierarchy.
func (g *Graph) Root() string {
	return g.root
}

// NTerms returns the number of terms in the hierarchy.
func (g *Graph) NTerms() int {
	return len(g.parents)
}

// Contains reports whether term is part of the hierarchy.
func (g *Graph) Contains(term string) bool {
	_, ok := g.parents[term]
	return ok
}

// Terms returns all term identifiers in lexical order.
func (g *Graph) Terms() []string {
	terms := make([]string, 0, len(g.parents))
	for t := range g.parents {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Parents returns the direct parents of term.
func (g *Graph) Parents(term string) []string {
	return g.parents[term]
}

// Ancestors returns the ancestor set of term, including term itself.
// The returned map is shared and must not be modified.
func (g *Graph) Ancestors(term string) map[string]struct{} {
	return g.ancestors[term]
}

// IsAncestor reports whether anc is an ancestor of term. A term is
// considered its own ancestor.
func (g *Graph) IsAncestor(term, anc string) bool {
	_, ok := g.ancestors[term][anc]
	return ok
}

// ResolveAlt maps an alternate term identifier to its primary
// identifier, returning the argument unchanged when it is not an
// alternate.
func (g *Graph) ResolveAlt(term string) string {
	if primary, ok := g.altIDs[term]; ok {
		return primary
	}
	return term
}

// IsObsolete reports whether term was marked obsolete in the source
// ontology. Obsolete terms are not part of the graph.
func (g *Graph) IsObsolete(term string) bool {
	_, ok := g.obsolete[term]
	return ok
}
