package relaysync

import (
	"fmt"
	"strings"
)

const (
	queryWeight                  = 10
	answerWeight                 = 15
	entryWeight                  = queryWeight + answerWeight
	DefaultCompletenessThreshold = 50
)

type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Completeness int      `json:"completeness"`
}

// Validate scores a normalized thread. Hard failures (no id, no entries,
// or more than half the entries carrying neither query nor answer) mark the
// thread unexportable; a completeness score under the threshold is only a
// warning so degraded extractions still export, flagged.
func Validate(detail ThreadDetail, completenessThreshold int) ValidationResult {
	if completenessThreshold <= 0 {
		completenessThreshold = DefaultCompletenessThreshold
	}
	result := ValidationResult{Valid: true}
	if strings.TrimSpace(detail.ID) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "missing thread id")
	}
	if len(detail.Entries) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "no entries extracted")
		return result
	}

	score := 0
	emptyEntries := 0
	for _, entry := range detail.Entries {
		hasQuery := strings.TrimSpace(entry.Query) != ""
		hasAnswer := strings.TrimSpace(entry.Answer) != ""
		if hasQuery {
			score += queryWeight
		}
		if hasAnswer {
			score += answerWeight
		}
		if !hasQuery && !hasAnswer {
			emptyEntries++
		}
	}
	result.Completeness = score * 100 / (len(detail.Entries) * entryWeight)

	if emptyEntries*2 > len(detail.Entries) {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("%d of %d entries have neither query nor answer", emptyEntries, len(detail.Entries)))
	}
	if result.Completeness < completenessThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("completeness %d below threshold %d", result.Completeness, completenessThreshold))
	}
	return result
}
