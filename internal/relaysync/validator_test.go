package relaysync

import "testing"

func TestValidateMajorityEmptyEntriesFails(t *testing.T) {
	detail := ThreadDetail{
		ID: "t1",
		Entries: []Entry{
			{Query: "q", Answer: "a"},
			{},
			{},
			{},
		},
	}
	result := Validate(detail, 0)
	if result.Valid {
		t.Fatalf("expected hard failure when 3 of 4 entries are empty")
	}
}

func TestValidateNoEntriesFails(t *testing.T) {
	result := Validate(ThreadDetail{ID: "t1"}, 0)
	if result.Valid {
		t.Fatalf("expected failure with no entries")
	}
}

func TestValidateMissingIDFails(t *testing.T) {
	result := Validate(ThreadDetail{Entries: []Entry{{Query: "q", Answer: "a"}}}, 0)
	if result.Valid {
		t.Fatalf("expected failure with missing id")
	}
}

func TestValidateCompletenessScore(t *testing.T) {
	detail := ThreadDetail{
		ID: "t1",
		Entries: []Entry{
			{Query: "q", Answer: "a"},
			{Query: "q"},
		},
	}
	result := Validate(detail, 0)
	if !result.Valid {
		t.Fatalf("expected valid result, got errors %v", result.Errors)
	}
	// (10+15 + 10) / (2*25) = 70%
	if result.Completeness != 70 {
		t.Fatalf("expected completeness 70, got %d", result.Completeness)
	}
}

func TestValidateLowCompletenessWarnsButExports(t *testing.T) {
	detail := ThreadDetail{
		ID: "t1",
		Entries: []Entry{
			{Query: "q"},
			{Query: "q"},
			{Answer: "a"},
		},
	}
	result := Validate(detail, 80)
	if !result.Valid {
		t.Fatalf("low completeness must not hard-fail, got errors %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected completeness warning")
	}
}

func TestValidateFullScore(t *testing.T) {
	detail := ThreadDetail{
		ID:      "t1",
		Entries: []Entry{{Query: "q", Answer: "a"}},
	}
	result := Validate(detail, 0)
	if result.Completeness != 100 {
		t.Fatalf("expected completeness 100, got %d", result.Completeness)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}
