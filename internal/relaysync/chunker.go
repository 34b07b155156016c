package relaysync

import (
	"strings"
)

const (
	// Notion hard-caps rich text at 2000 characters per block; stay under
	// it with margin.
	DefaultMaxTextLength    = 1900
	DefaultMaxBlocksPerCall = 100
)

type Block struct {
	Object           string         `json:"object"`
	Type             string         `json:"type"`
	Paragraph        *RichTextValue `json:"paragraph,omitempty"`
	Heading3         *RichTextValue `json:"heading_3,omitempty"`
	BulletedListItem *RichTextValue `json:"bulleted_list_item,omitempty"`
}

type RichTextValue struct {
	RichText []RichText `json:"rich_text"`
}

type RichText struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

type TextContent struct {
	Content string    `json:"content"`
	Link    *TextLink `json:"link,omitempty"`
}

type TextLink struct {
	URL string `json:"url"`
}

// SplitIntoChunks cuts text into pieces of at most limit characters,
// preferring the last newline in the window, then the last sentence
// boundary, then the last space. A mid-word cut only happens when the
// window contains no safe boundary at all.
func SplitIntoChunks(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxTextLength
	}
	runes := []rune(text)
	if len(runes) <= limit {
		if len(runes) == 0 {
			return nil
		}
		return []string{text}
	}
	var chunks []string
	for len(runes) > limit {
		cut := boundaryBefore(runes, limit)
		chunks = append(chunks, string(runes[:cut]))
		for cut < len(runes) && (runes[cut] == ' ' || runes[cut] == '\n') {
			cut++
		}
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func boundaryBefore(runes []rune, limit int) int {
	window := runes[:limit]
	if idx := lastIndexRune(window, '\n'); idx > 0 {
		return idx
	}
	if idx := lastSentenceEnd(window); idx > 0 {
		return idx
	}
	if idx := lastIndexRune(window, ' '); idx > 0 {
		return idx
	}
	return limit
}

func lastIndexRune(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func lastSentenceEnd(runes []rune) int {
	for i := len(runes) - 1; i > 0; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
				continue
			}
			return i + 1
		}
	}
	return -1
}

func paragraphBlock(text string) Block {
	return Block{
		Object:    "block",
		Type:      "paragraph",
		Paragraph: &RichTextValue{RichText: []RichText{{Type: "text", Text: TextContent{Content: text}}}},
	}
}

func headingBlock(text string) Block {
	return Block{
		Object:   "block",
		Type:     "heading_3",
		Heading3: &RichTextValue{RichText: []RichText{{Type: "text", Text: TextContent{Content: text}}}},
	}
}

func citationBlock(citation Citation) Block {
	label := citation.Title
	if label == "" {
		label = citation.URL
	}
	return Block{
		Object: "block",
		Type:   "bulleted_list_item",
		BulletedListItem: &RichTextValue{RichText: []RichText{{
			Type: "text",
			Text: TextContent{Content: label, Link: &TextLink{URL: citation.URL}},
		}}},
	}
}

// BuildBlocks renders normalized entries into ordered destination blocks:
// a heading per query, paragraph chunks for the answer, and one list item
// per citation. Every text block respects maxTextLength.
func BuildBlocks(detail ThreadDetail, maxTextLength int) []Block {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	var blocks []Block
	for _, entry := range detail.Entries {
		if query := strings.TrimSpace(entry.Query); query != "" {
			for _, chunk := range SplitIntoChunks(query, maxTextLength) {
				blocks = append(blocks, headingBlock(chunk))
			}
		}
		if answer := strings.TrimSpace(entry.Answer); answer != "" {
			for _, chunk := range SplitIntoChunks(answer, maxTextLength) {
				blocks = append(blocks, paragraphBlock(chunk))
			}
		}
		for _, citation := range entry.Sources {
			if strings.TrimSpace(citation.URL) == "" {
				continue
			}
			blocks = append(blocks, citationBlock(citation))
		}
	}
	return blocks
}
