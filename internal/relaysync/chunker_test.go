package relaysync

import (
	"strings"
	"testing"
)

func TestSplitIntoChunksShortTextUntouched(t *testing.T) {
	chunks := SplitIntoChunks("short text", 100)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("expected single untouched chunk, got %v", chunks)
	}
}

func TestSplitIntoChunksRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 500)
	chunks := SplitIntoChunks(text, 120)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks")
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 120 {
			t.Fatalf("chunk %d exceeds limit: %d chars", i, len([]rune(chunk)))
		}
	}
}

func TestSplitIntoChunksPrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 100)
	chunks := SplitIntoChunks(text, 80)
	if chunks[0] != strings.Repeat("a", 50) {
		t.Fatalf("expected split at newline, got chunk %q", chunks[0])
	}
}

func TestSplitIntoChunksPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. " + strings.Repeat("c", 100)
	chunks := SplitIntoChunks(text, 80)
	if chunks[0] != "First sentence here." {
		t.Fatalf("expected split after sentence, got chunk %q", chunks[0])
	}
}

func TestSplitIntoChunksNeverSplitsWordWhenSpaceExists(t *testing.T) {
	text := strings.Repeat("alpha beta ", 100)
	chunks := SplitIntoChunks(text, 64)
	for i, chunk := range chunks {
		if strings.HasSuffix(chunk, "alph") || strings.HasSuffix(chunk, "bet") {
			t.Fatalf("chunk %d split a word: %q", i, chunk)
		}
	}
}

func TestSplitIntoChunksPreservesText(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 60)
	chunks := SplitIntoChunks(text, 100)
	joined := strings.Join(chunks, " ")
	if strings.Join(strings.Fields(joined), " ") != strings.Join(strings.Fields(text), " ") {
		t.Fatalf("chunks do not reassemble to the original text")
	}
}

func TestSplitIntoChunksHardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitIntoChunks(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestBuildBlocksOrdering(t *testing.T) {
	detail := ThreadDetail{
		ID:    "t1",
		Title: "Sample",
		Entries: []Entry{
			{
				Query:  "what is go",
				Answer: "a language",
				Sources: []Citation{
					{Title: "Docs", URL: "https://go.dev"},
				},
			},
		},
	}
	blocks := BuildBlocks(detail, 0)
	if len(blocks) != 3 {
		t.Fatalf("expected heading + paragraph + citation, got %d blocks", len(blocks))
	}
	if blocks[0].Type != "heading_3" {
		t.Fatalf("expected heading first, got %s", blocks[0].Type)
	}
	if blocks[1].Type != "paragraph" {
		t.Fatalf("expected paragraph second, got %s", blocks[1].Type)
	}
	if blocks[2].Type != "bulleted_list_item" {
		t.Fatalf("expected citation third, got %s", blocks[2].Type)
	}
	if blocks[2].BulletedListItem.RichText[0].Text.Link.URL != "https://go.dev" {
		t.Fatalf("citation lost its link")
	}
}

func TestBuildBlocksSplitsLongAnswer(t *testing.T) {
	detail := ThreadDetail{
		ID: "t1",
		Entries: []Entry{
			{Query: "q", Answer: strings.Repeat("sentence goes here. ", 400)},
		},
	}
	blocks := BuildBlocks(detail, 0)
	paragraphs := 0
	for _, block := range blocks {
		if block.Type == "paragraph" {
			paragraphs++
			content := block.Paragraph.RichText[0].Text.Content
			if len([]rune(content)) > DefaultMaxTextLength {
				t.Fatalf("paragraph exceeds max text length: %d", len([]rune(content)))
			}
		}
	}
	if paragraphs < 4 {
		t.Fatalf("expected long answer to split, got %d paragraphs", paragraphs)
	}
}

func TestBuildBlocksSkipsEmptyFields(t *testing.T) {
	detail := ThreadDetail{
		ID:      "t1",
		Entries: []Entry{{Query: "  ", Answer: "only answer"}},
	}
	blocks := BuildBlocks(detail, 0)
	if len(blocks) != 1 || blocks[0].Type != "paragraph" {
		t.Fatalf("expected single paragraph, got %+v", blocks)
	}
}
