package summary

import (
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
)

const unknownSpeaker = "unknown"

// BuildTranscript walks newestFirst from the most recent message backwards,
// adding len(name)+len(text) to a running total and stopping at the first
// message that would push the total past budget. The picked messages are
// returned in chronological order, so the result is always the contiguous
// tail of the round that fits.
func BuildTranscript(newestFirst []SourceMessage, names map[uuid.UUID]string, budget int) []Line {
	var (
		picked []Line
		total  int
	)

	for _, m := range newestFirst {
		name, ok := names[m.SenderID]
		if !ok {
			name = unknownSpeaker
		}

		cost := utf8.RuneCountInString(name) + utf8.RuneCountInString(m.Content)
		if total+cost > budget {
			break
		}

		total += cost
		picked = append(picked, Line{Name: name, Text: m.Content})
	}

	slices.Reverse(picked)
	return picked
}
