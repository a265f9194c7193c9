package assessment

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnswerQuality is the oracle's judgement of the learner's last answer.
type AnswerQuality string

const (
	QualityCorrect   AnswerQuality = "correct"
	QualityPartial   AnswerQuality = "partial"
	QualityIncorrect AnswerQuality = "incorrect"
	QualityUnclear   AnswerQuality = "unclear"
)

// Valid reports whether q is one of the known qualities.
func (q AnswerQuality) Valid() bool {
	switch q {
	case QualityCorrect, QualityPartial, QualityIncorrect, QualityUnclear:
		return true
	}
	return false
}

// Engagement is the learner's engagement as observed by the oracle.
type Engagement string

const (
	EngagementHigh      Engagement = "high"
	EngagementMedium    Engagement = "medium"
	EngagementLow       Engagement = "low"
	EngagementDeclining Engagement = "declining"
)

// Phase is the conversation stage reported by the oracle. It is carried
// through for display and never drives a state change.
type Phase string

const (
	PhaseCalibration Phase = "calibration"
	PhaseExploration Phase = "exploration"
	PhaseIntegration Phase = "integration"
	PhaseClosing     Phase = "closing"
)

// RawSignal is an assessment signal as decoded from the oracle, before
// validation. Levels are float pointers so that absent values, non-integer
// values and out-of-range values can be told apart.
type RawSignal struct {
	QuestionLevel        *float64 `json:"questionLevel,omitempty"`
	AnswerQuality        string   `json:"answerQuality,omitempty" validate:"omitempty,oneof=correct partial incorrect unclear"`
	ConceptsDemonstrated []string `json:"conceptsDemonstrated,omitempty"`
	ConceptsStruggling   []string `json:"conceptsStruggling,omitempty"`
	EngagementSignal     string   `json:"engagementSignal,omitempty" validate:"omitempty,oneof=high medium low declining"`
	SuggestedNextLevel   *float64 `json:"suggestedNextLevel,omitempty"`
	Phase                string   `json:"phase,omitempty" validate:"omitempty,oneof=calibration exploration integration closing"`
}

// Signal is a validated, normalized assessment signal. Zero values mean the
// field was absent: QuestionLevel and SuggestedLevel are 0, the enums are "".
type Signal struct {
	QuestionLevel  int           `json:"questionLevel,omitempty"`
	AnswerQuality  AnswerQuality `json:"answerQuality,omitempty"`
	Demonstrated   []string      `json:"conceptsDemonstrated"`
	Struggling     []string      `json:"conceptsStruggling"`
	Engagement     Engagement    `json:"engagementSignal,omitempty"`
	SuggestedLevel int           `json:"suggestedNextLevel,omitempty"`
	Phase          Phase         `json:"phase,omitempty"`

	// Overlap lists ids reported as both demonstrated and struggling in the
	// same signal. They are still applied, demonstrated first.
	Overlap []string `json:"overlap,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Ingest validates and normalizes a raw signal. Unknown enum values and
// non-integer levels fail with *ValidationError; integer levels outside
// [MinLevel, MaxLevel] are clamped.
func Ingest(raw RawSignal) (Signal, error) {
	if err := validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Signal{}, &ValidationError{
				Field:  fe.Field(),
				Value:  fe.Value(),
				Reason: "must be one of: " + fe.Param(),
			}
		}
		return Signal{}, &ValidationError{Field: "signal", Value: raw, Reason: err.Error()}
	}

	questionLevel, err := ingestLevel("questionLevel", raw.QuestionLevel)
	if err != nil {
		return Signal{}, err
	}
	suggested, err := ingestLevel("suggestedNextLevel", raw.SuggestedNextLevel)
	if err != nil {
		return Signal{}, err
	}

	sig := Signal{
		QuestionLevel:  questionLevel,
		AnswerQuality:  AnswerQuality(raw.AnswerQuality),
		Demonstrated:   normalizeIDs(raw.ConceptsDemonstrated),
		Struggling:     normalizeIDs(raw.ConceptsStruggling),
		Engagement:     Engagement(raw.EngagementSignal),
		SuggestedLevel: suggested,
		Phase:          Phase(raw.Phase),
	}
	sig.Overlap = intersect(sig.Demonstrated, sig.Struggling)
	return sig, nil
}

// ingestLevel returns 0 for an absent level.
func ingestLevel(field string, v *float64) (int, error) {
	if v == nil {
		return 0, nil
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &ValidationError{Field: field, Value: f, Reason: "must be an integer"}
	}
	// Clamp before converting: huge values overflow int.
	f = math.Max(MinLevel, math.Min(MaxLevel, f))
	return int(f), nil
}

// normalizeIDs trims ids, drops blanks and collapses duplicates while
// keeping first-seen order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	var out []string
	for _, id := range a {
		if inB[id] {
			out = append(out, id)
		}
	}
	return out
}
