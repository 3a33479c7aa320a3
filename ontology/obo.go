package ontology

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// oboTerm collects the tags of one [Term] stanza.
type oboTerm struct {
	id       string
	isA      []string
	altIDs   []string
	obsolete bool
}

// ParseOBO reads a hierarchy in OBO format. Obsolete terms are
// excluded from the graph but remembered so that inputs using them can
// be reported; alt_id tags are recorded so that inputs using alternate
// identifiers can be resolved.
func ParseOBO(r io.Reader) (*Graph, error) {
	var (
		terms   []oboTerm
		current *oboTerm
		inTerm  bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if inTerm && current.id != "" {
				terms = append(terms, *current)
			}
			inTerm = line == "[Term]"
			current = &oboTerm{}
			continue
		}
		if !inTerm {
			continue
		}
		kv := strings.SplitN(line, ": ", 2)
		if len(kv) != 2 {
			continue
		}
		value := kv[1]
		// strip trailing term-name comments, e.g. "HP:0000001 ! All"
		if idx := strings.Index(value, " ! "); idx > 0 {
			value = value[:idx]
		}
		value = strings.TrimSpace(value)

		switch kv[0] {
		case "id":
			current.id = value
		case "is_a":
			current.isA = append(current.isA, value)
		case "alt_id":
			current.altIDs = append(current.altIDs, value)
		case "is_obsolete":
			current.obsolete = value == "true"
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inTerm && current.id != "" {
		terms = append(terms, *current)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("ontology: no terms found in obo input")
	}

	obsolete := make(map[string]struct{})
	for _, t := range terms {
		if t.obsolete {
			obsolete[t.id] = struct{}{}
		}
	}

	parents := make(map[string][]string, len(terms))
	altIDs := make(map[string]string)
	for _, t := range terms {
		if t.obsolete {
			continue
		}
		parents[t.id] = nil
		for _, p := range t.isA {
			if _, ok := obsolete[p]; ok {
				continue
			}
			parents[t.id] = append(parents[t.id], p)
		}
		for _, alt := range t.altIDs {
			altIDs[alt] = t.id
		}
	}

	g, err := NewGraph(parents)
	if err != nil {
		return nil, err
	}
	g.altIDs = altIDs
	g.obsolete = obsolete
	return g, nil
}
