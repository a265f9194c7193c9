package assessment

import (
	"encoding/json"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

func TestAnswerWindow_PushEvictsOldest(t *testing.T) {
	var w AnswerWindow
	seq := []AnswerQuality{
		QualityCorrect, QualityPartial, QualityIncorrect,
		QualityUnclear, QualityCorrect, QualityIncorrect,
	}
	for _, q := range seq {
		w.Push(q)
	}

	if w.Len() != WindowCapacity {
		t.Fatalf("Len() = %d, want %d", w.Len(), WindowCapacity)
	}
	want := seq[1:]
	if got := w.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestAnswerWindow_LastN(t *testing.T) {
	var w AnswerWindow
	w.Push(QualityIncorrect)
	w.Push(QualityPartial)
	w.Push(QualityCorrect)

	tests := []struct {
		n    int
		want []AnswerQuality
	}{
		{0, nil},
		{1, []AnswerQuality{QualityCorrect}},
		{2, []AnswerQuality{QualityPartial, QualityCorrect}},
		{3, []AnswerQuality{QualityIncorrect, QualityPartial, QualityCorrect}},
		{10, []AnswerQuality{QualityIncorrect, QualityPartial, QualityCorrect}},
	}
	for _, tt := range tests {
		got := w.LastN(tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("LastN(%d) = %v, want %v", tt.n, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("LastN(%d) = %v, want %v", tt.n, got, tt.want)
				break
			}
		}
	}

	if w.Len() != 3 {
		t.Errorf("LastN mutated the window: Len() = %d", w.Len())
	}
}

func TestAnswerWindow_LastNReturnsCopy(t *testing.T) {
	var w AnswerWindow
	w.Push(QualityCorrect)
	got := w.LastN(1)
	got[0] = QualityIncorrect

	if w.LastN(1)[0] != QualityCorrect {
		t.Error("modifying LastN result changed the window")
	}
}

func TestAnswerWindow_Count(t *testing.T) {
	var w AnswerWindow
	for _, q := range []AnswerQuality{QualityIncorrect, QualityCorrect, QualityUnclear, QualityUnclear} {
		w.Push(q)
	}
	if got := w.Count(QualityIncorrect, QualityUnclear); got != 3 {
		t.Errorf("Count(incorrect, unclear) = %d, want 3", got)
	}
	if got := w.Count(QualityPartial); got != 0 {
		t.Errorf("Count(partial) = %d, want 0", got)
	}
}

func TestAnswerWindow_JSONTrimsToCapacity(t *testing.T) {
	var w AnswerWindow
	data := []byte(`["correct","correct","incorrect","partial","unclear","correct","correct"]`)
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Len() != WindowCapacity {
		t.Fatalf("Len() = %d, want %d", w.Len(), WindowCapacity)
	}
	if w.LastN(WindowCapacity)[0] != QualityIncorrect {
		t.Errorf("oldest entry = %s, want incorrect", w.LastN(WindowCapacity)[0])
	}

	out, err := json.Marshal(AnswerWindow{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "[]" {
		t.Errorf("empty window marshals to %s, want []", out)
	}
}

func TestAnswerWindow_JSONDropsUnknownQualities(t *testing.T) {
	var w AnswerWindow
	data := []byte(`["correct","bogus","incorrect","","unclear"]`)
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []AnswerQuality{QualityCorrect, QualityIncorrect, QualityUnclear}
	if got := w.LastN(WindowCapacity); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func qualityGen() *rapid.Generator[AnswerQuality] {
	return rapid.SampledFrom([]AnswerQuality{
		QualityCorrect, QualityPartial, QualityIncorrect, QualityUnclear,
	})
}

func TestAnswerWindow_Property_BoundedFIFO(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pushes := rapid.SliceOf(qualityGen()).Draw(rt, "pushes")

		var w AnswerWindow
		for _, q := range pushes {
			w.Push(q)
			if w.Len() > WindowCapacity {
				rt.Fatalf("window grew to %d", w.Len())
			}
		}

		start := max(0, len(pushes)-WindowCapacity)
		want := pushes[start:]
		got := w.Entries()
		if len(got) != len(want) {
			rt.Fatalf("Entries() has %d items, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("Entries()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}
