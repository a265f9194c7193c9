package assessment

import (
	"math"
	"sort"
	"time"
)

const (
	// rankedConcepts is how many concepts the strongest and weakest lists hold.
	rankedConcepts = 3

	// stableLevelAnswers is how many correct answers at one level make that
	// level stable.
	stableLevelAnswers = 3
)

// RankedConcept is a scored concept enriched with its catalog name.
type RankedConcept struct {
	ConceptID     string  `json:"conceptId"`
	Name          string  `json:"name"`
	AchievedLevel int     `json:"achievedLevel"`
	Confidence    float64 `json:"confidence"`
}

// LevelPoint is one assistant message's level in the progression chart.
type LevelPoint struct {
	MessageIndex int `json:"messageIndex"`
	Level        int `json:"level"`
}

// Report summarizes a session.
type Report struct {
	SessionID        string          `json:"sessionId"`
	Title            string          `json:"title"`
	Status           Status          `json:"status"`
	FinalLevel       int             `json:"finalLevel"`
	StableLevel      int             `json:"stableLevel"`
	DurationMinutes  int             `json:"durationMinutes"`
	ConceptCoverage  int             `json:"conceptCoverage"`
	Strongest        []RankedConcept `json:"strongest"`
	Weakest          []RankedConcept `json:"weakest"`
	LevelProgression []LevelPoint    `json:"levelProgression"`
	Scores           []ConceptScore  `json:"conceptScores"`
}

// BuildReport derives a report from s. It does not modify s and returns the
// same result for the same state and now. Sessions still active are measured
// up to now.
func BuildReport(s *SessionState, now time.Time) Report {
	finalLevel := s.CurrentLevel
	if s.Status.Terminal() && s.FinalLevel != 0 {
		finalLevel = s.FinalLevel
	}

	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}

	ranked := rankConcepts(s)
	return Report{
		SessionID:        s.ID,
		Title:            s.Title,
		Status:           s.Status,
		FinalLevel:       finalLevel,
		StableLevel:      StableLevel(s.Messages),
		DurationMinutes:  int(math.Round(end.Sub(s.CreatedAt).Minutes())),
		ConceptCoverage:  coverage(s.Ledger.Len(), len(s.Catalog)),
		Strongest:        head(ranked, rankedConcepts),
		Weakest:          tail(ranked, rankedConcepts),
		LevelProgression: levelProgression(s.Messages, finalLevel),
		Scores:           s.Ledger.Scores(),
	}
}

// rankConcepts orders scored concepts by achieved level, highest first.
// Ties fall back to concept id so the order is deterministic.
func rankConcepts(s *SessionState) []RankedConcept {
	scores := s.Ledger.Scores()
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].AchievedLevel > scores[j].AchievedLevel
	})

	out := make([]RankedConcept, len(scores))
	for i, sc := range scores {
		name := sc.ConceptID
		if c, ok := s.Catalog.Lookup(sc.ConceptID); ok && c.Name != "" {
			name = c.Name
		}
		out[i] = RankedConcept{
			ConceptID:     sc.ConceptID,
			Name:          name,
			AchievedLevel: sc.AchievedLevel,
			Confidence:    sc.Confidence,
		}
	}
	return out
}

// head and tail copy so the two lists never share backing storage. With
// fewer than 2n entries they overlap, and that overlap is kept.
func head(rs []RankedConcept, n int) []RankedConcept {
	n = min(n, len(rs))
	return append([]RankedConcept{}, rs[:n]...)
}

func tail(rs []RankedConcept, n int) []RankedConcept {
	n = min(n, len(rs))
	return append([]RankedConcept{}, rs[len(rs)-n:]...)
}

func coverage(scored, catalogSize int) int {
	if catalogSize == 0 {
		return 0
	}
	return int(math.Round(float64(scored) / float64(catalogSize) * 100))
}

func levelProgression(msgs []Message, fallback int) []LevelPoint {
	points := []LevelPoint{}
	for _, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		level := m.QuestionLevel
		if level == 0 {
			level = fallback
		}
		points = append(points, LevelPoint{MessageIndex: len(points), Level: level})
	}
	return points
}

// StableLevel returns the highest level at which at least three assistant
// messages judged the answer correct, or MinLevel when there is none.
func StableLevel(msgs []Message) int {
	var correct [MaxLevel + 1]int
	for _, m := range msgs {
		if m.Role == RoleAssistant && m.AnswerQuality == QualityCorrect && m.QuestionLevel >= MinLevel && m.QuestionLevel <= MaxLevel {
			correct[m.QuestionLevel]++
		}
	}
	for level := MaxLevel; level >= MinLevel; level-- {
		if correct[level] >= stableLevelAnswers {
			return level
		}
	}
	return MinLevel
}
