package assessment

const (
	MinLevel   = 1
	MaxLevel   = 5
	StartLevel = 2

	// promotionStreak is the run of trailing correct answers that earns a
	// level up.
	promotionStreak = 3

	// demotionMisses is the number of incorrect or unclear answers anywhere
	// in the window that costs a level.
	demotionMisses = 2
)

// LevelRule names the rule of the cascade that decided a turn's level.
type LevelRule string

const (
	RuleNone      LevelRule = "none"
	RulePromotion LevelRule = "promotion"
	RuleDemotion  LevelRule = "demotion"
	RuleOracle    LevelRule = "oracle"
)

// LevelDecision is the level controller's verdict for one turn.
type LevelDecision struct {
	From int       `json:"from"`
	To   int       `json:"to"`
	Rule LevelRule `json:"rule"`
}

// Changed reports whether the decision moves the session to a new level.
func (d LevelDecision) Changed() bool {
	return d.From != d.To
}

// DecideLevel runs the promotion, demotion, oracle fallback cascade over the
// window. The first matching rule wins. suggested is the oracle's advisory
// level, 0 when absent. The result is always within [MinLevel, MaxLevel].
func DecideLevel(current int, w *AnswerWindow, suggested int) LevelDecision {
	current = clampLevel(current)
	d := LevelDecision{From: current, To: current, Rule: RuleNone}

	if last := w.LastN(promotionStreak); len(last) == promotionStreak && allEqual(last, QualityCorrect) {
		d.Rule = RulePromotion
		d.To = clampLevel(current + 1)
		return d
	}

	if w.Count(QualityIncorrect, QualityUnclear) >= demotionMisses {
		d.Rule = RuleDemotion
		d.To = clampLevel(current - 1)
		return d
	}

	if suggested != 0 {
		d.Rule = RuleOracle
		d.To = clampLevel(suggested)
	}
	return d
}

func allEqual(qs []AnswerQuality, want AnswerQuality) bool {
	for _, q := range qs {
		if q != want {
			return false
		}
	}
	return true
}

func clampLevel(n int) int {
	return clamp(n, MinLevel, MaxLevel)
}
