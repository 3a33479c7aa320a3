// Package pheno loads proband phenotypes and gene to proband mappings.
package pheno

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/op/go-logging"

	"github.com/clinphen/hposim/ontology"
)

// log is the global logging variable.
var log = logging.MustGetLogger("pheno")

// Phenotypes maps a proband identifier to its observed HPO terms.
type Phenotypes map[string][]string

// Genes maps a gene symbol to the probands with candidate variants in
// that gene.
type Genes map[string][]string

// LoadPhenotypes reads a JSON object mapping proband identifiers to
// lists of HPO terms, e.g. {"DDD01": ["HP:0003312", "HP:0001159"]}.
// Alternate identifiers are replaced by their primary identifier and
// obsolete terms are dropped with a warning. Terms are not otherwise
// validated here; use Check before scoring.
func LoadPhenotypes(r io.Reader, g *ontology.Graph) (Phenotypes, error) {
	var raw map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("pheno: reading phenotypes: %v", err)
	}

	phenotypes := make(Phenotypes, len(raw))
	for proband, terms := range raw {
		kept := make([]string, 0, len(terms))
		for _, term := range terms {
			if g.IsObsolete(term) {
				log.Warningf("dropping obsolete term %s for proband %s", term, proband)
				continue
			}
			kept = append(kept, g.ResolveAlt(term))
		}
		phenotypes[proband] = kept
	}
	return phenotypes, nil
}

// LoadGenes reads a JSON object mapping gene symbols to proband
// identifier lists, e.g. {"ADNP": ["DDD01", "DDD02"]}.
func LoadGenes(r io.Reader) (Genes, error) {
	var genes Genes
	if err := json.NewDecoder(r).Decode(&genes); err != nil {
		return nil, fmt.Errorf("pheno: reading genes: %v", err)
	}
	return genes, nil
}

// Check verifies that every proband term occurs in the hierarchy. A
// missing term is an error rather than a silent zero-information
// score; the error names the proband and the offending term.
func (p Phenotypes) Check(g *ontology.Graph) error {
	for _, proband := range p.Probands() {
		for _, term := range p[proband] {
			if !g.Contains(term) {
				return fmt.Errorf("pheno: proband %s has a term (%s) missing from the ontology; "+
					"%s might come from a newer ontology release", proband, term, term)
			}
		}
	}
	return nil
}

// Probands returns all proband identifiers in lexical order.
func (p Phenotypes) Probands() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Phenotyped returns, in lexical order, the probands that have at
// least one recorded term. Only these contribute to term usage counts
// and can be sampled into null groups.
func (p Phenotypes) Phenotyped() []string {
	ids := make([]string, 0, len(p))
	for id, terms := range p {
		if len(terms) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Group returns the term lists of the given probands. Probands with
// no phenotype record or with an empty term list cannot be compared;
// they are skipped and do not count towards the group size.
func (p Phenotypes) Group(probands []string) [][]string {
	group := make([][]string, 0, len(probands))
	for _, id := range probands {
		terms, ok := p[id]
		if !ok {
			log.Debugf("proband %s has no phenotype record", id)
			continue
		}
		if len(terms) == 0 {
			continue
		}
		group = append(group, terms)
	}
	return group
}

// GeneSymbols returns all gene symbols in lexical order.
func (g Genes) GeneSymbols() []string {
	symbols := make([]string, 0, len(g))
	for symbol := range g {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
