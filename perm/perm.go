// Package perm estimates the significance of group similarity scores
// by Monte Carlo resampling.
//
// The null hypothesis is that the probands of a gene are a random draw
// from the phenotyped population. Each permutation samples a same-size
// group of whole probands, without replacement, and scores it with the
// same aggregator as the observed group. Sampling individual terms at
// their population frequency instead was tried and rejected: it
// produced an excess of extremely significant results, because it
// ignores the correlations between terms that co-occur within one
// proband.
//
// The empirical p-value is the fraction of null scores strictly
// greater than the observed score; its attainable resolution is one
// over the number of permutations, so with too few permutations a
// reported zero only means "below resolution".
package perm

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/op/go-logging"

	"github.com/clinphen/hposim/pheno"
	"github.com/clinphen/hposim/sim"
)

// log is the global logging variable.
var log = logging.MustGetLogger("perm")

// Simulator draws null distributions of group scores from a reference
// pool of probands. Distributions are cached per group size, since
// every gene with the same number of probands shares one null.
type Simulator struct {
	model      *sim.Model
	phenotypes pheno.Phenotypes
	pool       []string
	iterations int
	seed       int64
	workers    int

	mu    sync.Mutex
	cache map[int][]float64
}

// NewSimulator creates a Simulator sampling from the phenotyped
// probands of the given population. The seed fixes all permutations;
// workers bounds the concurrency (values below 1 mean serial).
func NewSimulator(model *sim.Model, phenotypes pheno.Phenotypes, iterations int, seed int64, workers int) *Simulator {
	if workers < 1 {
		workers = 1
	}
	return &Simulator{
		model:      model,
		phenotypes: phenotypes,
		pool:       phenotypes.Phenotyped(),
		iterations: iterations,
		seed:       seed,
		workers:    workers,
		cache:      make(map[int][]float64),
	}
}

// Iterations returns the number of permutations per distribution.
func (s *Simulator) Iterations() int {
	return s.iterations
}

// Prime installs a previously simulated distribution for a group
// size, e.g. one loaded from a checkpoint database. The distribution
// must be sorted and of length Iterations.
func (s *Simulator) Prime(size int, dist []float64) error {
	if len(dist) != s.iterations {
		return fmt.Errorf("perm: primed distribution has %d scores, want %d", len(dist), s.iterations)
	}
	if !sort.Float64sAreSorted(dist) {
		return fmt.Errorf("perm: primed distribution for size %d is not sorted", size)
	}
	s.mu.Lock()
	s.cache[size] = dist
	s.mu.Unlock()
	return nil
}

// Simulate returns the sorted null distribution of group scores for
// the given group size, simulating it on first use. The result is
// shared and must not be modified.
func (s *Simulator) Simulate(size int) ([]float64, error) {
	if size < 2 {
		return nil, fmt.Errorf("perm: cannot simulate groups of size %d", size)
	}
	if size > len(s.pool) {
		return nil, fmt.Errorf("perm: group size %d exceeds pool of %d probands", size, len(s.pool))
	}

	s.mu.Lock()
	dist, ok := s.cache[size]
	s.mu.Unlock()
	if ok {
		return dist, nil
	}

	log.Infof("simulating %d null scores for group size %d", s.iterations, size)

	dist = make([]float64, s.iterations)
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		simErr  error
	)
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < s.iterations; i += s.workers {
				score, err := s.permutation(size, i)
				if err != nil {
					errOnce.Do(func() { simErr = err })
					return
				}
				dist[i] = score
			}
		}(w)
	}
	wg.Wait()
	if simErr != nil {
		return nil, simErr
	}

	sort.Float64s(dist)
	s.mu.Lock()
	s.cache[size] = dist
	s.mu.Unlock()
	return dist, nil
}

// permutation scores one randomly sampled group. Every permutation
// has its own random source derived from the simulator seed, so the
// distribution is identical for any number of workers.
func (s *Simulator) permutation(size, i int) (float64, error) {
	rng := rand.New(rand.NewSource(s.seed + int64(size)*1000000007 + int64(i)))

	group := make([][]string, size)
	for j, id := range sample(rng, s.pool, size) {
		group[j] = s.phenotypes[id]
	}
	return s.model.GroupScore(group)
}

// sample draws size distinct probands uniformly from the pool,
// without replacement.
func sample(rng *rand.Rand, pool []string, size int) []string {
	ids := make([]string, size)
	for j, idx := range rng.Perm(len(pool))[:size] {
		ids[j] = pool[idx]
	}
	return ids
}

// PValue returns the empirical p-value of an observed score against a
// sorted null distribution: the fraction of null scores strictly
// greater than the observed one. Ties with the observed score do not
// count as exceeding it.
func PValue(observed float64, dist []float64) float64 {
	first := sort.Search(len(dist), func(i int) bool { return dist[i] > observed })
	return float64(len(dist)-first) / float64(len(dist))
}

// Resolution returns the smallest nonzero p-value attainable from the
// distribution, 1/len. A reported p of 0 means "below this value";
// callers that log-transform p-values should clamp with it.
func Resolution(dist []float64) float64 {
	return 1 / float64(len(dist))
}

// PermuteProbands reassigns every gene a random set of probands drawn
// from the other genes' probands, preserving group sizes. This is a
// calibration device: p-values computed on permuted assignments should
// follow the uniform distribution.
func PermuteProbands(genes pheno.Genes, rng *rand.Rand) (pheno.Genes, error) {
	members := make(map[string]struct{})
	for _, probands := range genes {
		for _, id := range probands {
			members[id] = struct{}{}
		}
	}
	all := make([]string, 0, len(members))
	for id := range members {
		all = append(all, id)
	}
	sort.Strings(all)

	permuted := make(pheno.Genes, len(genes))
	for _, gene := range genes.GeneSymbols() {
		own := make(map[string]struct{}, len(genes[gene]))
		for _, id := range genes[gene] {
			own[id] = struct{}{}
		}

		others := make([]string, 0, len(all))
		for _, id := range all {
			if _, ok := own[id]; !ok {
				others = append(others, id)
			}
		}
		if len(others) < len(genes[gene]) {
			return nil, fmt.Errorf("perm: cannot permute %s: %d probands available, %d needed",
				gene, len(others), len(genes[gene]))
		}

		sample := make([]string, len(genes[gene]))
		for j, idx := range rng.Perm(len(others))[:len(sample)] {
			sample[j] = others[idx]
		}
		permuted[gene] = sample
	}
	return permuted, nil
}
