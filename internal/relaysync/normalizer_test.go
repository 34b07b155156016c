package relaysync

import "testing"

func TestNormalizeStructuredBlocks(t *testing.T) {
	raw := map[string]any{
		"id":    "t1",
		"title": "Block thread",
		"entries": []any{
			map[string]any{
				"query_str": "what is go",
				"blocks": []any{
					map[string]any{
						"intended_usage": "ask_text",
						"answer":         "Go is a language.",
					},
				},
			},
		},
	}
	detail := Normalize(raw)
	if detail.ID != "t1" || detail.Title != "Block thread" {
		t.Fatalf("unexpected identity: %+v", detail)
	}
	if len(detail.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(detail.Entries))
	}
	if detail.Entries[0].Query != "what is go" {
		t.Fatalf("expected query from query_str, got %q", detail.Entries[0].Query)
	}
	if detail.Entries[0].Answer != "Go is a language." {
		t.Fatalf("expected answer from block, got %q", detail.Entries[0].Answer)
	}
}

func TestNormalizeJoinsBlockChunks(t *testing.T) {
	raw := map[string]any{
		"id": "t2",
		"entries": []any{
			map[string]any{
				"question": "chunks?",
				"blocks": []any{
					map[string]any{
						"chunks": []any{"part one ", "part two"},
					},
				},
			},
		},
	}
	detail := Normalize(raw)
	if detail.Entries[0].Answer != "part one part two" {
		t.Fatalf("expected joined chunks, got %q", detail.Entries[0].Answer)
	}
}

func TestNormalizeFlatAnswerFallback(t *testing.T) {
	raw := map[string]any{
		"id": "t3",
		"entries": []any{
			map[string]any{"prompt": "hi", "text": "flat text answer"},
		},
	}
	detail := Normalize(raw)
	if detail.Entries[0].Answer != "flat text answer" {
		t.Fatalf("expected flat text fallback, got %q", detail.Entries[0].Answer)
	}
	if detail.Entries[0].Query != "hi" {
		t.Fatalf("expected prompt fallback, got %q", detail.Entries[0].Query)
	}
}

func TestNormalizeNestedResponseFallback(t *testing.T) {
	raw := map[string]any{
		"id": "t4",
		"entries": []any{
			map[string]any{
				"query":    "nested?",
				"response": map[string]any{"content": "nested content"},
			},
		},
	}
	detail := Normalize(raw)
	if detail.Entries[0].Answer != "nested content" {
		t.Fatalf("expected nested response fallback, got %q", detail.Entries[0].Answer)
	}
}

func TestNormalizeNoMatchYieldsEmptyAnswer(t *testing.T) {
	raw := map[string]any{
		"id": "t5",
		"entries": []any{
			map[string]any{"query": "only a question"},
		},
	}
	detail := Normalize(raw)
	if detail.Entries[0].Answer != "" {
		t.Fatalf("expected empty answer, got %q", detail.Entries[0].Answer)
	}
}

func TestNormalizeCitationSources(t *testing.T) {
	raw := map[string]any{
		"id": "t6",
		"entries": []any{
			map[string]any{
				"query":  "sources?",
				"answer": "with sources",
				"sources": []any{
					map[string]any{"title": "Doc", "url": "https://example.com/doc"},
					"https://example.com/bare",
				},
			},
		},
	}
	detail := Normalize(raw)
	sources := detail.Entries[0].Sources
	if len(sources) != 2 {
		t.Fatalf("expected two citations, got %d", len(sources))
	}
	if sources[0].Title != "Doc" || sources[0].URL != "https://example.com/doc" {
		t.Fatalf("unexpected first citation: %+v", sources[0])
	}
	if sources[1].URL != "https://example.com/bare" {
		t.Fatalf("unexpected bare citation: %+v", sources[1])
	}
}

func TestNormalizeCitationBlocksWinOverSources(t *testing.T) {
	raw := map[string]any{
		"id": "t7",
		"entries": []any{
			map[string]any{
				"query":  "q",
				"answer": "a",
				"blocks": []any{
					map[string]any{
						"intended_usage": "web_results",
						"web_results": []any{
							map[string]any{"name": "Typed", "link": "https://example.com/typed"},
						},
					},
				},
				"sources": []any{"https://example.com/fallback"},
			},
		},
	}
	detail := Normalize(raw)
	sources := detail.Entries[0].Sources
	if len(sources) != 1 || sources[0].URL != "https://example.com/typed" {
		t.Fatalf("expected typed citation block to win, got %+v", sources)
	}
}

func TestNormalizeTitleFallsBackToFirstQuery(t *testing.T) {
	raw := map[string]any{
		"id": "t8",
		"entries": []any{
			map[string]any{"query": "first question becomes title", "answer": "a"},
		},
	}
	detail := Normalize(raw)
	if detail.Title != "first question becomes title" {
		t.Fatalf("expected title from first query, got %q", detail.Title)
	}
}
