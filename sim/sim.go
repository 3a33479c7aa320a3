// Package sim implements information-content based phenotype
// similarity between probands.
//
// A Model is built once from the term hierarchy and the phenotypes of
// a reference population. Each proband contributes one use to every
// ancestor of each of its terms, so rare (specific) terms end up with
// small usage counts and high information content,
//
//	IC(t) = -log(usage(t) / total),
//
// where total is the usage count of the root, i.e. the number of
// phenotyped probands. The similarity of two terms is the information
// content of their most informative common ancestor (MICA). The
// similarity of two probands collapses the full matrix of term-pair
// similarities with a geometric mean; a group of probands is scored by
// summing the similarity over every unordered proband pair.
//
// A term present in the hierarchy but never observed in the reference
// population is treated as having usage 1, so its information content
// is log(total). A term-pair whose only common ancestor is the root
// has similarity 0; inside the geometric mean such cells are floored
// at log(total/(total-1)), the smallest positive information content
// resolvable from a population of that size.
package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/clinphen/hposim/ontology"
	"github.com/clinphen/hposim/pheno"
)

// log is the global logging variable.
var log = logging.MustGetLogger("sim")

// ScoreMode is a type specifying the matrix combining rule.
type ScoreMode int

const (
	// ScoreGeoMean collapses the term-pair similarity matrix with
	// the geometric mean over all cells. This is the default: the
	// max rule produced p-values spuriously correlated with an
	// unrelated test of de novo mutation burden.
	ScoreGeoMean ScoreMode = iota
	// ScoreMax collapses the matrix with the maximum cell (the
	// "best matching term pair", Resnik's maxIC).
	ScoreMax
	// ScoreSimGIC compares the induced ancestor graphs of the two
	// probands instead of term pairs: summed IC of their
	// intersection over summed IC of their union (Pesquita et al.
	// 2007).
	ScoreSimGIC
)

func (s ScoreMode) String() string {
	switch s {
	case ScoreGeoMean:
		return "geomean"
	case ScoreMax:
		return "max"
	case ScoreSimGIC:
		return "simgic"
	}
	return fmt.Sprintf("ScoreMode(%d)", int(s))
}

// termPair is a key for the MICA cache; a is lexically <= b.
type termPair struct {
	a, b string
}

// Model holds the hierarchy, the term usage counts of the reference
// population and the derived information content values. Apart from
// the internally locked MICA cache it is read-only after construction
// and safe for concurrent use.
type Model struct {
	graph *ontology.Graph
	usage map[string]int
	total int
	floor float64
	mode  ScoreMode

	mu   sync.RWMutex
	mica map[termPair]float64
}

// NewModel tallies term usage across the reference population and
// returns a ready similarity model. Every proband with at least one
// term contributes one use to each ancestor of each of its terms.
// A proband term missing from the hierarchy is an error.
func NewModel(g *ontology.Graph, phenotypes pheno.Phenotypes) (*Model, error) {
	if err := phenotypes.Check(g); err != nil {
		return nil, err
	}

	m := &Model{
		graph: g,
		usage: make(map[string]int),
		mica:  make(map[termPair]float64),
	}

	for _, proband := range phenotypes.Phenotyped() {
		seen := make(map[string]struct{})
		for _, term := range phenotypes[proband] {
			for anc := range g.Ancestors(term) {
				seen[anc] = struct{}{}
			}
		}
		for term := range seen {
			m.usage[term]++
		}
		m.total++
	}

	if m.total < 2 {
		return nil, fmt.Errorf("sim: reference population has %d phenotyped probands, need at least 2", m.total)
	}
	m.floor = math.Log(float64(m.total) / float64(m.total-1))
	log.Debugf("tallied %d terms across %d probands", len(m.usage), m.total)

	return m, nil
}

// SetScoreMode changes the matrix combining rule. Call before any
// scoring; the default is ScoreGeoMean.
func (m *Model) SetScoreMode(mode ScoreMode) {
	m.mode = mode
}

// Total returns the number of phenotyped probands in the reference
// population.
func (m *Model) Total() int {
	return m.total
}

// Usage returns how many reference probands were annotated with term
// or one of its descendants.
func (m *Model) Usage(term string) int {
	return m.usage[term]
}

// IC returns the information content of term. An unobserved term is
// treated as having usage 1.
func (m *Model) IC(term string) float64 {
	count := m.usage[term]
	if count == 0 {
		count = 1
	}
	return -math.Log(float64(count) / float64(m.total))
}

// TermSimilarity returns the information content of the most
// informative common ancestor of a and b. Both ancestor sets include
// the term itself, so TermSimilarity(t, t) == IC(t). The result is
// symmetric and memoized.
func (m *Model) TermSimilarity(a, b string) (float64, error) {
	if !m.graph.Contains(a) {
		return 0, fmt.Errorf("sim: term %s missing from the ontology", a)
	}
	if !m.graph.Contains(b) {
		return 0, fmt.Errorf("sim: term %s missing from the ontology", b)
	}

	pair := termPair{a, b}
	if b < a {
		pair = termPair{b, a}
	}

	m.mu.RLock()
	ic, ok := m.mica[pair]
	m.mu.RUnlock()
	if ok {
		return ic, nil
	}

	ic = m.IC(m.mica1(a, b))

	m.mu.Lock()
	m.mica[pair] = ic
	m.mu.Unlock()
	return ic, nil
}

// mica1 returns the most informative common ancestor of a and b, with
// ties broken by the lexically smallest identifier so results are
// reproducible.
func (m *Model) mica1(a, b string) string {
	ancA := m.graph.Ancestors(a)
	ancB := m.graph.Ancestors(b)
	if len(ancB) < len(ancA) {
		ancA, ancB = ancB, ancA
	}

	best := ""
	bestIC := math.Inf(-1)
	for t := range ancA {
		if _, ok := ancB[t]; !ok {
			continue
		}
		ic := m.IC(t)
		if ic > bestIC || (ic == bestIC && t < best) {
			best = t
			bestIC = ic
		}
	}
	return best
}

// Similarity returns the phenotype similarity of two probands given
// their term lists. The full cross matrix of term-pair similarities
// is collapsed according to the score mode. An empty term list is an
// error: a silent 0 would corrupt aggregate scores.
func (m *Model) Similarity(termsA, termsB []string) (float64, error) {
	if len(termsA) == 0 || len(termsB) == 0 {
		return 0, fmt.Errorf("sim: cannot compare probands with no terms")
	}

	if m.mode == ScoreSimGIC {
		return m.simGIC(termsA, termsB)
	}

	s := mat.NewDense(len(termsA), len(termsB), nil)
	for i, a := range termsA {
		for j, b := range termsB {
			ic, err := m.TermSimilarity(a, b)
			if err != nil {
				return 0, err
			}
			s.Set(i, j, ic)
		}
	}

	cells := s.RawMatrix().Data
	switch m.mode {
	case ScoreMax:
		return floats.Max(cells), nil
	default:
		// Root-only cells have similarity 0 and no log; floor
		// them at the model's smallest resolvable IC.
		floored := make([]float64, len(cells))
		for i, v := range cells {
			if v < m.floor {
				v = m.floor
			}
			floored[i] = v
		}
		return stat.GeometricMean(floored, nil), nil
	}
}

// simGIC scores two probands by the summed information content of the
// intersection of their induced ancestor graphs over that of the
// union. Two probands annotated with the root alone share no
// information and score 0.
func (m *Model) simGIC(termsA, termsB []string) (float64, error) {
	inducedA, err := m.induced(termsA)
	if err != nil {
		return 0, err
	}
	inducedB, err := m.induced(termsB)
	if err != nil {
		return 0, err
	}

	var intersect, union float64
	for t := range inducedA {
		ic := m.IC(t)
		union += ic
		if _, ok := inducedB[t]; ok {
			intersect += ic
		}
	}
	for t := range inducedB {
		if _, ok := inducedA[t]; !ok {
			union += m.IC(t)
		}
	}

	if union == 0 {
		return 0, nil
	}
	return intersect / union, nil
}

// induced returns the union of the ancestor closures of a proband's
// terms.
func (m *Model) induced(terms []string) (map[string]struct{}, error) {
	induced := make(map[string]struct{})
	for _, term := range terms {
		if !m.graph.Contains(term) {
			return nil, fmt.Errorf("sim: term %s missing from the ontology", term)
		}
		for anc := range m.graph.Ancestors(term) {
			induced[anc] = struct{}{}
		}
	}
	return induced, nil
}

// GroupScore sums Similarity over every unordered pair of probands in
// the group. Groups of fewer than two probands have no pairs and are
// rejected.
func (m *Model) GroupScore(group [][]string) (float64, error) {
	if len(group) < 2 {
		return 0, fmt.Errorf("sim: group of %d probands has no pairs to score", len(group))
	}

	score := 0.0
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			s, err := m.Similarity(group[i], group[j])
			if err != nil {
				return 0, err
			}
			score += s
		}
	}
	return score, nil
}

// LowSupport returns the observed terms whose usage count is below
// min. Information content estimates for such terms rest on very few
// probands and should be treated with caution.
func (m *Model) LowSupport(min int) []string {
	var terms []string
	for _, term := range m.graph.Terms() {
		if count := m.usage[term]; count > 0 && count < min {
			terms = append(terms, term)
		}
	}
	return terms
}
