package sim

import (
	"math"
	"strings"
	"testing"

	"github.com/op/go-logging"

	"github.com/clinphen/hposim/ontology"
	"github.com/clinphen/hposim/pheno"
)

// smallDiff is a threshold for testing
const smallDiff = 1e-9

func init() {
	logging.SetLevel(logging.ERROR, "sim")
}

/*** Tests if a and b are approximately equal ***/
func appreq(a, b float64) bool {
	return math.Abs(a-b) <= smallDiff
}

// test hierarchy: root R with children A and B, A has child A1, and C
// is an extra child of R that no proband is annotated with.
const (
	termR  = "HP:0000001"
	termA  = "HP:0000002"
	termB  = "HP:0000003"
	termA1 = "HP:0000004"
	termC  = "HP:0000005"
)

func testGraph(tst *testing.T) *ontology.Graph {
	g, err := ontology.NewGraph(map[string][]string{
		termR:  nil,
		termA:  {termR},
		termB:  {termR},
		termA1: {termA},
		termC:  {termR},
	})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	return g
}

// four probands: two observe {A1}, one observes {A}, one observes {B}
func testPhenotypes() pheno.Phenotypes {
	return pheno.Phenotypes{
		"person_01": {termA1},
		"person_02": {termA1},
		"person_03": {termA},
		"person_04": {termB},
	}
}

func testModel(tst *testing.T) *Model {
	m, err := NewModel(testGraph(tst), testPhenotypes())
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	return m
}

/*** Test usage tallying ***/
func TestUsage(tst *testing.T) {
	m := testModel(tst)

	if m.Total() != 4 {
		tst.Error("Expected total 4, got", m.Total())
	}

	// observing a term is an observation of every ancestor
	counts := map[string]int{termR: 4, termA: 3, termA1: 2, termB: 1, termC: 0}
	for term, want := range counts {
		if got := m.Usage(term); got != want {
			tst.Errorf("Usage(%s): expected %d, got %d", term, want, got)
		}
	}
}

/*** Test information content ***/
func TestIC(tst *testing.T) {
	m := testModel(tst)

	if !appreq(m.IC(termR), 0) {
		tst.Error("Expected IC(root)=0, got", m.IC(termR))
	}
	if !appreq(m.IC(termA), -math.Log(3.0/4.0)) {
		tst.Error("Expected -log(3/4), got", m.IC(termA))
	}
	if !appreq(m.IC(termA1), math.Log(2)) {
		tst.Error("Expected log(2), got", m.IC(termA1))
	}
	if !appreq(m.IC(termB), math.Log(4)) {
		tst.Error("Expected log(4), got", m.IC(termB))
	}

	// rarer terms are more informative
	if !(m.IC(termB) > m.IC(termA1) && m.IC(termA1) > m.IC(termA) && m.IC(termA) > m.IC(termR)) {
		tst.Error("IC ordering violated")
	}
}

/*** Test that IC never increases towards the root ***/
func TestICMonotonic(tst *testing.T) {
	g := testGraph(tst)
	m := testModel(tst)

	for _, term := range g.Terms() {
		for anc := range g.Ancestors(term) {
			if anc == term {
				continue
			}
			if m.IC(term) < m.IC(anc) {
				tst.Errorf("IC(%s)=%v < IC(ancestor %s)=%v", term, m.IC(term), anc, m.IC(anc))
			}
		}
	}
}

/*** Test unobserved term fallback ***/
func TestICUnobserved(tst *testing.T) {
	m := testModel(tst)

	// a term never observed in the population is treated as if it
	// had been observed once
	if !appreq(m.IC(termC), math.Log(4)) {
		tst.Error("Expected log(4), got", m.IC(termC))
	}
}

/*** Test MICA term similarity ***/
func TestTermSimilarity(tst *testing.T) {
	m := testModel(tst)

	// the only common ancestor of A1 and B is the root
	s, err := m.TermSimilarity(termA1, termB)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, 0) {
		tst.Error("Expected IC(root)=0, got", s)
	}

	// the MICA of A1 and A is A itself
	s, err = m.TermSimilarity(termA1, termA)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, -math.Log(3.0/4.0)) {
		tst.Error("Expected IC(A), got", s)
	}

	// symmetry
	ab, _ := m.TermSimilarity(termA, termB)
	ba, _ := m.TermSimilarity(termB, termA)
	if ab != ba {
		tst.Error("TermSimilarity is not symmetric:", ab, ba)
	}

	// a term is maximally similar to itself
	s, err = m.TermSimilarity(termA1, termA1)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, m.IC(termA1)) {
		tst.Error("Expected IC(A1), got", s)
	}

	_, err = m.TermSimilarity(termA, "HP:7777777")
	if err == nil {
		tst.Error("expected error for unknown term")
	}
}

/*** Test proband pair similarity ***/
func TestSimilarity(tst *testing.T) {
	m := testModel(tst)
	floor := math.Log(4.0 / 3.0)

	// a single root-only cell is floored at the smallest
	// resolvable IC for a population of 4
	s, err := m.Similarity([]string{termA1}, []string{termB})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, floor) {
		tst.Error("Expected floored score, got", s)
	}

	// single informative cell: the geometric mean is the cell
	s, err = m.Similarity([]string{termA1}, []string{termA})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, -math.Log(3.0/4.0)) {
		tst.Error("Expected IC(A), got", s)
	}

	// 2x1 matrix with cells log(2) and floor
	s, err = m.Similarity([]string{termA1, termB}, []string{termA1})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	want := math.Exp((math.Log(math.Log(2)) + math.Log(floor)) / 2)
	if !appreq(s, want) {
		tst.Error("Expected", want, ", got", s)
	}

	// empty term lists must fail loudly, not score 0
	_, err = m.Similarity(nil, []string{termA})
	if err == nil {
		tst.Error("expected error for empty term list")
	}
	_, err = m.Similarity([]string{termA}, []string{})
	if err == nil {
		tst.Error("expected error for empty term list")
	}
}

/*** Test the max combining rule ***/
func TestSimilarityMax(tst *testing.T) {
	m := testModel(tst)
	m.SetScoreMode(ScoreMax)

	// with unequal cells max and geometric mean disagree
	s, err := m.Similarity([]string{termA1, termB}, []string{termA1})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, math.Log(2)) {
		tst.Error("Expected log(2), got", s)
	}

	// with all cells equal the combining rule does not matter
	s, err = m.Similarity([]string{termA1}, []string{termA1})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	m.SetScoreMode(ScoreGeoMean)
	g, err := m.Similarity([]string{termA1}, []string{termA1})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, g) {
		tst.Error("Expected equal scores, got", s, g)
	}
}

/*** Test the simGIC combining rule ***/
func TestSimilaritySimGIC(tst *testing.T) {
	m := testModel(tst)
	m.SetScoreMode(ScoreSimGIC)

	// induced({A1}) = {A1, A, R}, induced({A}) = {A, R}:
	// shared IC is IC(A), total IC is IC(A1)+IC(A)
	s, err := m.Similarity([]string{termA1}, []string{termA})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	icA := -math.Log(3.0 / 4.0)
	want := icA / (math.Log(2) + icA)
	if !appreq(s, want) {
		tst.Error("Expected", want, ", got", s)
	}

	// identical term sets share their whole induced graph
	s, err = m.Similarity([]string{termA1}, []string{termA1})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, 1) {
		tst.Error("Expected 1, got", s)
	}

	// symmetry
	ab, _ := m.Similarity([]string{termA1, termB}, []string{termA})
	ba, _ := m.Similarity([]string{termA}, []string{termA1, termB})
	if !appreq(ab, ba) {
		tst.Error("simGIC is not symmetric:", ab, ba)
	}

	// probands sharing only the root score 0
	s, err = m.Similarity([]string{termR}, []string{termR})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(s, 0) {
		tst.Error("Expected 0, got", s)
	}

	_, err = m.Similarity([]string{termA}, []string{"HP:7777777"})
	if err == nil {
		tst.Error("expected error for unknown term")
	}
}

/*** Test group scores ***/
func TestGroupScore(tst *testing.T) {
	m := testModel(tst)

	group := [][]string{{termA1}, {termA}, {termB}}

	// the group score is the sum of the three pairwise scores
	want := 0.0
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			s, err := m.Similarity(group[i], group[j])
			if err != nil {
				tst.Fatal("Error: ", err)
			}
			want += s
		}
	}

	got, err := m.GroupScore(group)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(got, want) {
		tst.Error("Expected", want, ", got", got)
	}

	// proband order within the group does not matter
	reordered, err := m.GroupScore([][]string{{termB}, {termA1}, {termA}})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(got, reordered) {
		tst.Error("group score depends on proband order:", got, reordered)
	}

	// a pair group reduces to a single pairwise score
	pair, err := m.GroupScore([][]string{{termA1}, {termA}})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	single, err := m.Similarity([]string{termA1}, []string{termA})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !appreq(pair, single) {
		tst.Error("Expected", single, ", got", pair)
	}

	// no pairs to score
	_, err = m.GroupScore([][]string{{termA1}})
	if err == nil {
		tst.Error("expected error for group of one")
	}
}

/*** Test model construction errors ***/
func TestNewModelErrors(tst *testing.T) {
	g := testGraph(tst)

	_, err := NewModel(g, pheno.Phenotypes{
		"person_01": {termA},
		"person_02": {"HP:7777777"},
	})
	if err == nil {
		tst.Fatal("expected error for unknown proband term")
	}
	if !strings.Contains(err.Error(), "person_02") || !strings.Contains(err.Error(), "HP:7777777") {
		tst.Error("error does not name the offender: ", err)
	}

	_, err = NewModel(g, pheno.Phenotypes{"person_01": {termA}})
	if err == nil {
		tst.Error("expected error for single proband population")
	}
}

/*** Test low support reporting ***/
func TestLowSupport(tst *testing.T) {
	m := testModel(tst)

	low := m.LowSupport(2)
	if len(low) != 1 || low[0] != termB {
		tst.Error("Expected [HP:0000003], got", low)
	}

	// unobserved terms are not reported, their fallback is pinned
	// elsewhere
	for _, term := range low {
		if term == termC {
			tst.Error("unobserved term reported as low support")
		}
	}
}
