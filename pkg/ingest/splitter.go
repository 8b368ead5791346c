package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 1500
	defaultChunkOverlap = 100

	// widerTextWindow is how far the wider context window extends beyond
	// each side of a chunk, in runes.
	widerTextWindow = 300
)

// defaultSeparators orders split points from strongest to weakest:
// paragraph breaks, line breaks, word breaks, then single runes.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Document is one loadable unit of text and its source reference.
type Document struct {
	Content   string
	Reference string
}

// Chunk is a splitter output: the chunk text, its ordinal position within
// the document, and a wider window of surrounding text kept for synthesis.
type Chunk struct {
	Text      string
	Reference string
	Position  int
	WiderText string
}

// Splitter cuts documents into overlapping chunks. It prefers breaking at
// the strongest separator present and recurses into weaker ones only for
// pieces that still exceed the chunk size, so a chunk never exceeds the
// configured size. Lengths are measured in runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	widerWindow  int
}

// NewSplitter creates a splitter. Non-positive chunkSize and negative
// chunkOverlap fall back to the defaults; an overlap that would reach the
// chunk size is halved.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap, widerWindow: widerTextWindow}
}

// Split cuts a document into chunks and attaches each chunk's wider
// context window.
func (s *Splitter) Split(doc Document) []Chunk {
	pieces := s.splitText(doc.Content, defaultSeparators)
	if len(pieces) == 0 {
		return nil
	}

	runes := []rune(doc.Content)
	chunks := make([]Chunk, 0, len(pieces))
	searchFrom := 0
	for i, piece := range pieces {
		wider := piece
		byteStart := strings.Index(doc.Content[searchFrom:], piece)
		if byteStart >= 0 {
			byteStart += searchFrom
		} else {
			byteStart = strings.Index(doc.Content, piece)
		}
		if byteStart >= 0 {
			start := utf8.RuneCountInString(doc.Content[:byteStart])
			wider = contextWindow(runes, start, utf8.RuneCountInString(piece), s.widerWindow)
			searchFrom = byteStart + 1
		}
		chunks = append(chunks, Chunk{
			Text:      piece,
			Reference: doc.Reference,
			Position:  i,
			WiderText: wider,
		})
	}
	return chunks
}

// splitText splits on the first separator present in text and merges the
// resulting pieces into chunks. Pieces still over the chunk size recurse
// into the remaining, weaker separators.
func (s *Splitter) splitText(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var deeper []string
	for i, cand := range separators {
		if cand == "" {
			sep = cand
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			deeper = separators[i+1:]
			break
		}
	}

	var final []string
	var good []string
	for _, piece := range splitBySeparator(text, sep) {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.mergeSplits(good, sep)...)
			good = nil
		}
		if len(deeper) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.splitText(piece, deeper)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.mergeSplits(good, sep)...)
	}
	return final
}

// mergeSplits greedily packs pieces into chunks up to the chunk size.
// When a chunk is emitted, trailing pieces totalling at most the overlap
// are carried into the next chunk.
func (s *Splitter) mergeSplits(splits []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var docs []string
	var current []string
	total := 0

	for _, d := range splits {
		dLen := utf8.RuneCountInString(d)
		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}
		if total+dLen+extra > s.chunkSize && len(current) > 0 {
			if doc := joinSplits(current, sep); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (total+dLen+extra > s.chunkSize && total > 0) {
				head := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					head += sepLen
				}
				total -= head
				current = current[1:]
				extra = 0
				if len(current) > 0 {
					extra = sepLen
				}
			}
		}
		current = append(current, d)
		if len(current) > 1 {
			total += dLen + sepLen
		} else {
			total += dLen
		}
	}

	if doc := joinSplits(current, sep); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitBySeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinSplits(parts []string, sep string) string {
	return strings.TrimSpace(strings.Join(parts, sep))
}

// contextWindow extends a chunk's rune span by window runes on each side,
// clamped to the document bounds.
func contextWindow(runes []rune, start, length, window int) string {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := start + length - 1 + window
	if hi > len(runes) {
		hi = len(runes)
	}
	return string(runes[lo:hi])
}
