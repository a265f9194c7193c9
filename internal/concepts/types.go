package concepts

import "github.com/abhisek/socratic/internal/assessment"

// RelationType is the kind of link between two concepts.
type RelationType string

const (
	RelationExampleOf     RelationType = "is_example_of"
	RelationLeadsTo       RelationType = "leads_to"
	RelationContrastsWith RelationType = "contrasts_with"
	RelationPartOf        RelationType = "is_part_of"
)

// Relation links two concepts by id.
type Relation struct {
	From string       `json:"from" yaml:"from"`
	To   string       `json:"to" yaml:"to"`
	Type RelationType `json:"type" yaml:"type"`
}

// Example illustrates a concept.
type Example struct {
	Concept string `json:"concept" yaml:"concept"`
	Example string `json:"example" yaml:"example"`
}

// Analysis is the structured result of extracting concepts from a text.
// It is also the on-disk catalog format.
type Analysis struct {
	Title     string             `json:"title,omitempty" yaml:"title,omitempty"`
	Concepts  assessment.Catalog `json:"concepts" yaml:"concepts"`
	Relations []Relation         `json:"relations" yaml:"relations,omitempty"`
	Examples  []Example          `json:"examples" yaml:"examples,omitempty"`
}
