// Package intake implements the conversational symptom-intake engine.
package intake

import (
	"fmt"
	"strings"
)

// Semantic slot names assigned by the question classifier.
const (
	SlotPain = "pain"
	SlotDays = "days"
)

// SlotForQuestion classifies a follow-up question into the answer-map slot
// its answer should be stored under. Classification looks at the question
// text, never at the answer, so the mapping is deterministic for a given
// question list. Questions that match no known pattern fall back to a
// positional slot derived from the question's index.
func SlotForQuestion(question string, index int) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "severe") || strings.Contains(q, "1 to 10"):
		return SlotPain
	case strings.Contains(q, "how many days") || strings.Contains(q, "how long"):
		return SlotDays
	default:
		return fmt.Sprintf("q_%d", index)
	}
}
