package concepts

import (
	"fmt"
	"strings"

	"github.com/abhisek/socratic/internal/assessment"
)

// Normalize cleans up an analysis in place: strings are trimmed, complexity
// is clamped to [1,5], blank ids get a free concept_N id, duplicate ids are
// dropped (first wins), and relations and examples that reference unknown
// concepts are dropped.
func Normalize(a *Analysis) {
	taken := make(map[string]bool, len(a.Concepts))
	for _, c := range a.Concepts {
		if id := strings.TrimSpace(c.ID); id != "" {
			taken[id] = true
		}
	}

	next := 1
	freeID := func() string {
		for {
			id := fmt.Sprintf("concept_%d", next)
			next++
			if !taken[id] {
				taken[id] = true
				return id
			}
		}
	}

	seen := make(map[string]bool, len(a.Concepts))
	out := make(assessment.Catalog, 0, len(a.Concepts))
	for _, c := range a.Concepts {
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		c.Definition = strings.TrimSpace(c.Definition)
		c.SourceSection = strings.TrimSpace(c.SourceSection)
		c.Complexity = min(max(c.Complexity, 1), 5)

		if c.ID == "" {
			if c.Name == "" {
				continue
			}
			c.ID = freeID()
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if c.Name == "" {
			c.Name = c.ID
		}
		out = append(out, c)
	}
	a.Concepts = out

	relations := make([]Relation, 0, len(a.Relations))
	for _, r := range a.Relations {
		r.From = strings.TrimSpace(r.From)
		r.To = strings.TrimSpace(r.To)
		if seen[r.From] && seen[r.To] && validRelation(r.Type) {
			relations = append(relations, r)
		}
	}
	a.Relations = relations

	examples := make([]Example, 0, len(a.Examples))
	for _, e := range a.Examples {
		e.Concept = strings.TrimSpace(e.Concept)
		e.Example = strings.TrimSpace(e.Example)
		if seen[e.Concept] && e.Example != "" {
			examples = append(examples, e)
		}
	}
	a.Examples = examples

	a.Title = strings.TrimSpace(a.Title)
}

func validRelation(t RelationType) bool {
	switch t {
	case RelationExampleOf, RelationLeadsTo, RelationContrastsWith, RelationPartOf:
		return true
	}
	return false
}
