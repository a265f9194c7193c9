package assessment

import "time"

// TurnResult describes what one processed turn changed.
type TurnResult struct {
	Signal Signal         `json:"signal"`
	Level  LevelDecision  `json:"level"`
	Deltas []SessionDelta `json:"-"`
}

// ProcessTurn applies one assessment signal, plus the messages exchanged in
// the turn, to an active session. Steps run in order: window push, level
// cascade, ledger (demonstrated then struggling), engagement, transcript.
//
// The turn is planned against a clone and committed only when every step
// succeeded, so on error s is left exactly as it was.
func ProcessTurn(s *SessionState, raw RawSignal, messages ...Message) (*TurnResult, error) {
	if err := s.requireActive("process turn"); err != nil {
		return nil, err
	}
	sig, err := Ingest(raw)
	if err != nil {
		return nil, err
	}

	work := s.Clone()
	var deltas []SessionDelta
	stage := func(d SessionDelta) {
		Apply(work, d)
		deltas = append(deltas, d)
	}

	// Concepts demonstrated in this turn are credited at the level the
	// question was asked at, which is the level before any change below.
	atLevel := sig.QuestionLevel
	if atLevel == 0 {
		atLevel = work.CurrentLevel
	}

	if sig.AnswerQuality != "" {
		stage(AnswerRecorded{Quality: sig.AnswerQuality})
	}

	decision := DecideLevel(work.CurrentLevel, &work.Window, sig.SuggestedLevel)
	if decision.Changed() {
		stage(LevelChanged{From: decision.From, To: decision.To, Rule: decision.Rule})
	}

	for _, id := range sig.Demonstrated {
		stage(ConceptScored{Score: work.Ledger.get(id).demonstrated(atLevel), Cause: CauseDemonstrated})
	}
	for _, id := range sig.Struggling {
		stage(ConceptScored{Score: work.Ledger.get(id).struggling(), Cause: CauseStruggling})
	}

	if sig.Engagement != "" && sig.Engagement != work.Engagement {
		stage(EngagementChanged{From: work.Engagement, To: sig.Engagement})
	}

	for _, m := range messages {
		if m.Role == RoleAssistant {
			if m.QuestionLevel == 0 {
				m.QuestionLevel = sig.QuestionLevel
			}
			if m.AnswerQuality == "" {
				m.AnswerQuality = sig.AnswerQuality
			}
		}
		stage(MessageAppended{Message: m})
	}

	for _, d := range deltas {
		Apply(s, d)
	}

	return &TurnResult{Signal: sig, Level: decision, Deltas: deltas}, nil
}

// AppendMessages records messages that carry no assessment signal.
func AppendMessages(s *SessionState, messages ...Message) ([]SessionDelta, error) {
	if err := s.requireActive("append messages to"); err != nil {
		return nil, err
	}
	deltas := make([]SessionDelta, 0, len(messages))
	for _, m := range messages {
		d := MessageAppended{Message: m}
		Apply(s, d)
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// End completes an active session and freezes its final level.
func End(s *SessionState, now time.Time) (StatusChanged, error) {
	return closeSession(s, StatusCompleted, "end", now)
}

// Abandon marks an active session as abandoned.
func Abandon(s *SessionState, now time.Time) (StatusChanged, error) {
	return closeSession(s, StatusAbandoned, "abandon", now)
}

func closeSession(s *SessionState, to Status, op string, now time.Time) (StatusChanged, error) {
	if err := s.requireActive(op); err != nil {
		return StatusChanged{}, err
	}
	d := StatusChanged{From: s.Status, To: to, At: now, FinalLevel: s.CurrentLevel}
	Apply(s, d)
	return d, nil
}
