package pipeline

import (
	"fmt"
	"strings"

	"github.com/siherrmann/recall/model"
)

// DefaultTargetChars is the chunk size target, roughly 500 tokens.
const DefaultTargetChars = 2000

// DefaultOverlapChars is the overlap carried into the next chunk, roughly
// 50 tokens.
const DefaultOverlapChars = 200

// OCRThresholdCharsPerPage flags scanned documents: pages with fewer
// stripped characters than this on average carry no extractable text.
const OCRThresholdCharsPerPage = 50

// NeedsOCR reports whether the extracted pages look like a scanned,
// image-only document.
func NeedsOCR(pages []model.PageText) bool {
	if len(pages) == 0 {
		return false
	}

	totalChars := 0
	for _, page := range pages {
		totalChars += len(strings.TrimSpace(page.Text))
	}

	return totalChars/len(pages) < OCRThresholdCharsPerPage
}

// span is a half-open [start, end) slice of the concatenated page text.
type span struct {
	start int
	end   int
}

// DefaultChunker creates a deterministic sentence-bounded chunker.
// Sentences accumulate until the target size; the trailing sentences up to
// the overlap budget carry into the next chunk so context survives the cut.
// A single sentence beyond the target is hard-split.
func DefaultChunker(targetChars int, overlapChars int) ChunkFunc {
	return func(pages []model.PageText) ([]*model.Chunk, error) {
		if targetChars <= 0 {
			return nil, fmt.Errorf("target chars must be positive")
		}
		if overlapChars < 0 || overlapChars >= targetChars {
			return nil, fmt.Errorf("overlap chars must be in [0, target)")
		}

		if len(pages) == 0 {
			return []*model.Chunk{}, nil
		}

		// Concatenate pages, remembering where each page starts.
		var builder strings.Builder
		pageOffsets := make([]int, len(pages))
		for i, page := range pages {
			pageOffsets[i] = builder.Len()
			builder.WriteString(page.Text)
			builder.WriteString("\n")
		}
		text := builder.String()

		if strings.TrimSpace(text) == "" {
			return []*model.Chunk{}, nil
		}

		sentences := splitSentences(text)

		var chunks []*model.Chunk
		var buf []span

		bufLen := func() int {
			if len(buf) == 0 {
				return 0
			}
			return buf[len(buf)-1].end - buf[0].start
		}

		emit := func() {
			if len(buf) == 0 {
				return
			}
			appendChunk(&chunks, text, buf[0].start, buf[len(buf)-1].end, pages, pageOffsets)

			// Carry trailing whole sentences into the next chunk.
			var carried []span
			carriedLen := 0
			for i := len(buf) - 1; i >= 0; i-- {
				sentenceLen := buf[i].end - buf[i].start
				if carriedLen+sentenceLen > overlapChars {
					break
				}
				carried = append([]span{buf[i]}, carried...)
				carriedLen += sentenceLen
			}
			buf = carried
		}

		for _, sentence := range sentences {
			sentenceLen := sentence.end - sentence.start

			// Hard split fallback for a sentence beyond the budget.
			if sentenceLen > targetChars {
				emit()
				buf = nil
				for start := sentence.start; start < sentence.end; start += targetChars {
					end := start + targetChars
					if end > sentence.end {
						end = sentence.end
					}
					appendChunk(&chunks, text, start, end, pages, pageOffsets)
				}
				continue
			}

			if bufLen()+sentenceLen > targetChars {
				emit()
			}
			buf = append(buf, sentence)
		}

		emit()

		return chunks, nil
	}
}

// splitSentences returns sentence spans over text. A sentence ends after
// terminal punctuation followed by whitespace, or at a paragraph break.
func splitSentences(text string) []span {
	var sentences []span
	start := 0

	flush := func(end int) {
		if strings.TrimSpace(text[start:end]) != "" {
			sentences = append(sentences, span{start: start, end: end})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || isSpace(text[i+1])) {
			flush(i + 1)
			continue
		}
		if c == '\n' && i+1 < len(text) && text[i+1] == '\n' {
			flush(i + 1)
		}
	}
	flush(len(text))

	return sentences
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// appendChunk emits the [start, end) slice as a chunk, skipping
// whitespace-only content. Char offsets point at the trimmed content.
func appendChunk(chunks *[]*model.Chunk, text string, start int, end int, pages []model.PageText, pageOffsets []int) {
	raw := text[start:end]
	content := strings.TrimSpace(raw)
	if content == "" {
		return
	}
	contentStart := start + strings.Index(raw, content[:1])

	*chunks = append(*chunks, &model.Chunk{
		ChunkIndex: len(*chunks),
		Content:    content,
		PageNumber: lookupPage(contentStart, pages, pageOffsets),
		CharStart:  contentStart,
		CharEnd:    contentStart + len(content),
		TokenCount: len(content) / 4,
	})
}

// lookupPage finds the page a character offset belongs to
func lookupPage(charOffset int, pages []model.PageText, pageOffsets []int) *int {
	var pageNumber *int
	for i, offset := range pageOffsets {
		if offset <= charOffset {
			pageNumber = &pages[i].PageNumber
		} else {
			break
		}
	}
	return pageNumber
}
