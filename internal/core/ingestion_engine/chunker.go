package ingestion_engine

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits text recursively on a priority list of separators and then
// merges the pieces back into overlapping windows of at most chunkSize.
//
// Length is measured in runes. The intended unit is model tokens, but a
// character count keeps chunking deterministic and free of tokenizer state.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
	length     func(string) int
}

func NewChunker(cfg *IngestConfig) *Chunker {
	return &Chunker{
		chunkSize:  cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: cfg.separators(),
		length:     utf8.RuneCountInString,
	}
}

// Chunk returns the ordered chunks of text. Blank text yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	return c.splitText(text, c.separators)
}

func (c *Chunker) splitText(text string, separators []string) []string {
	var final []string

	// Pick the first separator present in the text; the rest are used to
	// break down pieces that are still too long.
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if c.length(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, c.splitText(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs consecutive pieces into windows no longer than chunkSize.
// After emitting a window it drops pieces from the front until at most
// overlap characters remain, and those carry into the next window.
func (c *Chunker) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := c.length(piece)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := joinPieces(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.overlap || (total+n > c.chunkSize && total > 0) {
				total -= c.length(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := joinPieces(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeepingSeparator splits text on sep and glues each separator onto the
// piece that follows it, so joining the pieces restores the text. An empty
// separator splits into single runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}
