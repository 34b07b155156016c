package relaysync

import (
	"strings"
)

// Normalize converts a raw detail payload from a source adapter into
// canonical entries. Source schemas differ per platform and drift
// independently, so the extraction runs fixed fallback chains: the first
// matching strategy wins and a miss yields an empty field, never an error.
// The validator decides what to do with empty results.
func Normalize(raw map[string]any) ThreadDetail {
	detail := ThreadDetail{
		ID:    firstString(raw, "id", "thread_id", "uuid"),
		Title: firstString(raw, "title", "name"),
	}
	for _, rawEntry := range rawEntries(raw) {
		detail.Entries = append(detail.Entries, Entry{
			Query:   extractQuery(rawEntry),
			Answer:  extractAnswer(rawEntry),
			Sources: extractCitations(rawEntry),
		})
	}
	if detail.Title == "" && len(detail.Entries) > 0 {
		detail.Title = truncateTitle(detail.Entries[0].Query)
	}
	return detail
}

func rawEntries(raw map[string]any) []map[string]any {
	for _, field := range []string{"entries", "messages", "items", "qa_pairs"} {
		list, ok := raw[field].([]any)
		if !ok {
			continue
		}
		entries := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	}
	return nil
}

func extractQuery(entry map[string]any) string {
	return firstString(entry, "query", "query_str", "question", "prompt")
}

func extractAnswer(entry map[string]any) string {
	if answer := answerFromBlocks(entry); answer != "" {
		return answer
	}
	if answer := firstString(entry, "answer", "text"); answer != "" {
		return answer
	}
	if response, ok := entry["response"].(map[string]any); ok {
		if answer := firstString(response, "text", "content"); answer != "" {
			return answer
		}
	}
	return ""
}

func answerFromBlocks(entry map[string]any) string {
	blocks, ok := entry["blocks"].([]any)
	if !ok {
		return ""
	}
	for _, item := range blocks {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if kind := toString(block["intended_usage"]); kind != "" && kind != "ask_text" {
			continue
		}
		if answer := firstString(block, "answer"); answer != "" {
			return answer
		}
		if chunks, ok := block["chunks"].([]any); ok {
			parts := make([]string, 0, len(chunks))
			for _, chunk := range chunks {
				if text := toString(chunk); text != "" {
					parts = append(parts, text)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "")
			}
		}
	}
	return ""
}

func extractCitations(entry map[string]any) []Citation {
	if citations := citationsFromBlocks(entry); len(citations) > 0 {
		return citations
	}
	for _, field := range []string{"sources", "citations"} {
		list, ok := entry[field].([]any)
		if !ok {
			continue
		}
		if citations := citationsFromList(list); len(citations) > 0 {
			return citations
		}
	}
	return nil
}

func citationsFromBlocks(entry map[string]any) []Citation {
	blocks, ok := entry["blocks"].([]any)
	if !ok {
		return nil
	}
	for _, item := range blocks {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if toString(block["intended_usage"]) != "web_results" {
			continue
		}
		if list, ok := block["web_results"].([]any); ok {
			if citations := citationsFromList(list); len(citations) > 0 {
				return citations
			}
		}
	}
	return nil
}

func citationsFromList(list []any) []Citation {
	citations := make([]Citation, 0, len(list))
	for _, item := range list {
		switch value := item.(type) {
		case string:
			if strings.TrimSpace(value) != "" {
				citations = append(citations, Citation{URL: strings.TrimSpace(value)})
			}
		case map[string]any:
			url := firstString(value, "url", "link", "href")
			if url == "" {
				continue
			}
			citations = append(citations, Citation{
				Title: firstString(value, "title", "name"),
				URL:   url,
			})
		}
	}
	if len(citations) == 0 {
		return nil
	}
	return citations
}

func firstString(raw map[string]any, fields ...string) string {
	for _, field := range fields {
		if value := strings.TrimSpace(toString(raw[field])); value != "" {
			return value
		}
	}
	return ""
}

func toString(value any) string {
	text, _ := value.(string)
	return text
}

func truncateTitle(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 80 {
		return text
	}
	cut := text[:80]
	if idx := strings.LastIndex(cut, " "); idx > 40 {
		cut = cut[:idx]
	}
	return cut + "…"
}
