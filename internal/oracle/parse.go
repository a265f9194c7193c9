package oracle

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/abhisek/socratic/internal/assessment"
)

var (
	fencedJSON    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFencedJSON = regexp.MustCompile("(?s)```json.*?```")
)

// parseFreeText splits a free-text reply into the visible text and the
// signal from its first ```json block. Every json block is removed from the
// visible text. A missing or unparsable block yields a nil signal.
func parseFreeText(text string) (string, *assessment.RawSignal) {
	var sig *assessment.RawSignal
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		var raw assessment.RawSignal
		if err := json.Unmarshal([]byte(m[1]), &raw); err == nil {
			sig = &raw
		}
	}
	visible := strings.TrimSpace(anyFencedJSON.ReplaceAllString(text, ""))
	return visible, sig
}
