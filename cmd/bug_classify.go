package cmd

import (
	"strings"

	"github.com/joescharf/bugboard/internal/models"
)

// classifyPriority infers a bug priority from its text using keyword heuristics.
// Critical keywords are checked first, then high, then low. Defaults to medium.
func classifyPriority(text string) models.Priority {
	lower := strings.ToLower(text)

	criticalKeywords := []string{
		"crash", "data loss", "security", "production down",
		"outage", "corrupt", "p0",
	}
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityCritical
		}
	}

	highKeywords := []string{
		"urgent", "blocker", "blocking", "cannot", "can't",
		"not working", "broken", "regression", "fail", "p1",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityHigh
		}
	}

	lowKeywords := []string{
		"minor", "nice to have", "cosmetic", "trivial",
		"typo", "low priority", "alignment",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityLow
		}
	}

	return models.PriorityMedium
}
