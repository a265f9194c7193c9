package assessment

import (
	"encoding/json"
	"sort"
)

const (
	demonstratedStep = 0.2
	strugglingStep   = 0.1
)

// ConceptScore is the mastery evidence collected for one concept.
type ConceptScore struct {
	ConceptID     string  `json:"conceptId"`
	AchievedLevel int     `json:"achievedLevel"`
	Confidence    float64 `json:"confidence"`
}

// Ledger maps concept ids to scores. Entries are created on first reference
// and never removed. The zero value is ready to use.
type Ledger struct {
	scores map[string]ConceptScore
}

// RecordDemonstrated credits a concept shown at level atLevel.
// AchievedLevel never decreases and confidence is capped at 1.
func (l *Ledger) RecordDemonstrated(conceptID string, atLevel int) ConceptScore {
	s := l.get(conceptID).demonstrated(atLevel)
	l.put(s)
	return s
}

// RecordStruggling lowers confidence in a concept, floored at 0.
// AchievedLevel is left untouched.
func (l *Ledger) RecordStruggling(conceptID string) ConceptScore {
	s := l.get(conceptID).struggling()
	l.put(s)
	return s
}

func (s ConceptScore) demonstrated(atLevel int) ConceptScore {
	s.AchievedLevel = max(s.AchievedLevel, clamp(atLevel, 0, MaxLevel))
	s.Confidence = clampFloat(s.Confidence+demonstratedStep, 0, 1)
	return s
}

func (s ConceptScore) struggling() ConceptScore {
	s.Confidence = clampFloat(s.Confidence-strugglingStep, 0, 1)
	return s
}

// Score returns the score for a concept and whether it has been referenced.
func (l *Ledger) Score(conceptID string) (ConceptScore, bool) {
	s, ok := l.scores[conceptID]
	return s, ok
}

// Len returns the number of concepts scored so far.
func (l *Ledger) Len() int {
	return len(l.scores)
}

// Scores returns all scores sorted by concept id.
func (l *Ledger) Scores() []ConceptScore {
	out := make([]ConceptScore, 0, len(l.scores))
	for _, s := range l.scores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConceptID < out[j].ConceptID })
	return out
}

func (l *Ledger) get(conceptID string) ConceptScore {
	if s, ok := l.scores[conceptID]; ok {
		return s
	}
	return ConceptScore{ConceptID: conceptID}
}

func (l *Ledger) put(s ConceptScore) {
	if l.scores == nil {
		l.scores = make(map[string]ConceptScore)
	}
	l.scores[s.ConceptID] = s
}

func (l *Ledger) clone() Ledger {
	if l.scores == nil {
		return Ledger{}
	}
	c := Ledger{scores: make(map[string]ConceptScore, len(l.scores))}
	for k, v := range l.scores {
		c.scores[k] = v
	}
	return c
}

func (l Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Scores())
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var scores []ConceptScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return err
	}
	l.scores = make(map[string]ConceptScore, len(scores))
	for _, s := range scores {
		s.AchievedLevel = clamp(s.AchievedLevel, 0, MaxLevel)
		s.Confidence = clampFloat(s.Confidence, 0, 1)
		l.scores[s.ConceptID] = s
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
