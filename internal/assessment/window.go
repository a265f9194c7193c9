package assessment

import "encoding/json"

// WindowCapacity is the number of recent answers the level controller sees.
const WindowCapacity = 5

// AnswerWindow is a bounded FIFO of the most recent answer qualities,
// oldest first.
type AnswerWindow struct {
	entries []AnswerQuality
}

// Push appends q, evicting the oldest entry once the window is full.
func (w *AnswerWindow) Push(q AnswerQuality) {
	w.entries = append(w.entries, q)
	if len(w.entries) > WindowCapacity {
		w.entries = append(w.entries[:0:0], w.entries[len(w.entries)-WindowCapacity:]...)
	}
}

// LastN returns up to n of the most recent entries, oldest to newest.
func (w *AnswerWindow) LastN(n int) []AnswerQuality {
	if n <= 0 {
		return nil
	}
	if n > len(w.entries) {
		n = len(w.entries)
	}
	out := make([]AnswerQuality, n)
	copy(out, w.entries[len(w.entries)-n:])
	return out
}

// Len returns the number of entries held.
func (w *AnswerWindow) Len() int {
	return len(w.entries)
}

// Entries returns a copy of the whole window, oldest first.
func (w *AnswerWindow) Entries() []AnswerQuality {
	return w.LastN(len(w.entries))
}

// Count returns how many entries match any of qs.
func (w *AnswerWindow) Count(qs ...AnswerQuality) int {
	n := 0
	for _, e := range w.entries {
		for _, q := range qs {
			if e == q {
				n++
				break
			}
		}
	}
	return n
}

func (w AnswerWindow) MarshalJSON() ([]byte, error) {
	entries := w.entries
	if entries == nil {
		entries = []AnswerQuality{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON restores a window, keeping at most the newest
// WindowCapacity entries. Unknown qualities are dropped.
func (w *AnswerWindow) UnmarshalJSON(data []byte) error {
	var entries []AnswerQuality
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	w.entries = nil
	for _, e := range entries {
		if e.Valid() {
			w.Push(e)
		}
	}
	return nil
}

func newWindow(entries []AnswerQuality) AnswerWindow {
	var w AnswerWindow
	for _, e := range entries {
		w.Push(e)
	}
	return w
}
