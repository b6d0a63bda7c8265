package split

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/wicaksana/docdex"
)

var _ Strategy = (*Recursive)(nil)

// Recursive is the generic strategy: split on paragraph boundaries, then
// sentences, then words, merging segments back up to the size limit with
// optional overlap. It needs no document structure and never fails, which
// also makes it the fallback for structure-aware strategies.
type Recursive struct {
	cfg Config
}

// NewRecursive creates a Recursive strategy. cfg must already be validated
// (New does this); NewRecursive itself applies no defaults.
func NewRecursive(cfg Config) *Recursive {
	return &Recursive{cfg: cfg}
}

func (r *Recursive) Name() string { return "recursive" }

func (r *Recursive) Describe() string {
	return fmt.Sprintf("recursive splitting: parents up to %d bytes, children up to %d bytes, overlap %d (paragraphs, then sentences, then words)",
		r.cfg.ParentSize, r.cfg.ChildSize, r.cfg.Overlap)
}

// SplitParents divides the document text into parent-sized pieces.
// Pieces carry no category: this strategy is structure-blind.
func (r *Recursive) SplitParents(doc docdex.Document) ([]Piece, error) {
	texts := chunk(doc.Text, r.cfg.ParentSize, r.cfg.Overlap)
	pieces := make([]Piece, len(texts))
	for i, t := range texts {
		pieces[i] = Piece{Text: t}
	}
	return pieces, nil
}

// SplitChildren divides one parent's text into child-sized pieces.
func (r *Recursive) SplitChildren(parentText string) []string {
	return chunk(parentText, r.cfg.ChildSize, r.cfg.Overlap)
}

// chunk splits text into pieces of at most maxBytes, preferring paragraph
// boundaries, then sentence boundaries, then word boundaries, and merges
// adjacent segments back together with overlapBytes of trailing context.
// Input is NFC-normalized first so that byte budgets are stable across
// differently-composed sources.
func chunk(text string, maxBytes, overlapBytes int) []string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return nil
	}
	if len(text) <= maxBytes {
		return []string{text}
	}
	return mergeSegments(segment(text, maxBytes), maxBytes, overlapBytes)
}

// segment recursively splits text into pieces no larger than maxBytes.
func segment(text string, maxBytes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxBytes {
		return []string{text}
	}

	// Paragraph boundaries first.
	if paragraphs := strings.Split(text, "\n\n"); len(paragraphs) > 1 {
		var segments []string
		for _, p := range paragraphs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if len(p) <= maxBytes {
				segments = append(segments, p)
			} else {
				segments = append(segments, segmentSentences(p, maxBytes)...)
			}
		}
		return segments
	}

	// Then sentences, then words.
	if segments := segmentSentences(text, maxBytes); len(segments) > 1 {
		return segments
	}
	return segmentWords(text, maxBytes)
}

// segmentSentences splits text at sentence boundaries, packing as many
// whole sentences as fit into each segment. Oversized spans without a
// usable boundary fall through to word splitting.
func segmentSentences(text string, maxBytes int) []string {
	boundaries := sentenceBoundaries(text)
	if len(boundaries) == 0 {
		return segmentWords(text, maxBytes)
	}

	var segments []string
	emit := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if len(s) <= maxBytes {
			segments = append(segments, s)
		} else {
			segments = append(segments, segmentWords(s, maxBytes)...)
		}
	}

	start := 0
	lastFit := -1
	for _, b := range boundaries {
		if len(text[start:b]) <= maxBytes {
			lastFit = b
			continue
		}
		if lastFit > start {
			emit(text[start:lastFit])
			start = lastFit
			if len(strings.TrimSpace(text[start:b])) <= maxBytes {
				lastFit = b
			} else {
				lastFit = -1
			}
		} else {
			emit(text[start:b])
			start = b
			lastFit = -1
		}
	}
	if lastFit > start {
		emit(text[start:lastFit])
		start = lastFit
	}
	emit(text[start:])
	return segments
}

// sentenceAbbreviations should not end a sentence at their trailing dot.
var sentenceAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true,
}

func isAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	return sentenceAbbreviations[strings.ToLower(text[start:dotPos])]
}

// isDecimalDot reports whether the dot at dotPos sits inside a number
// (3.14, $1.50) rather than ending a sentence.
func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	prev, next := text[dotPos-1], text[dotPos+1]
	return prev >= '0' && prev <= '9' && next >= '0' && next <= '9'
}

// sentenceBoundaries returns byte positions where text may be split at a
// sentence end. ASCII .!? are checked against abbreviations and decimal
// numbers; CJK sentence-ending punctuation (。！？) is always a boundary.
func sentenceBoundaries(text string) []int {
	var boundaries []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]
		if r == '。' || r == '！' || r == '？' {
			boundaries = append(boundaries, byteOffsets[i+1])
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		pos := byteOffsets[i]
		if r == '.' && (isDecimalDot(text, pos) || isAbbreviation(text, pos)) {
			continue
		}
		if i+1 < n && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			switch {
			case runes[i+1] == '\n':
				boundaries = append(boundaries, byteOffsets[i+1])
			case i+2 < n && unicode.IsUpper(runes[i+2]):
				boundaries = append(boundaries, byteOffsets[i+2])
			case i+2 >= n:
				boundaries = append(boundaries, byteOffsets[n])
			}
		}
	}
	return boundaries
}

// segmentWords splits text at whitespace, packing words up to maxBytes.
// Single words longer than maxBytes are hard-cut.
func segmentWords(text string, maxBytes int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var segments []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, word := range words {
		if len(word) > maxBytes {
			flush()
			for i := 0; i < len(word); i += maxBytes {
				end := min(i+maxBytes, len(word))
				segments = append(segments, word[i:end])
			}
			continue
		}
		needed := len(word)
		if current.Len() > 0 {
			needed += current.Len() + 1
		}
		if needed > maxBytes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	flush()
	return segments
}

// mergeSegments packs segments back into chunks of at most maxBytes,
// carrying overlapBytes of trailing context into the next chunk.
func mergeSegments(segments []string, maxBytes, overlapBytes int) []string {
	if len(segments) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, seg := range segments {
		needed := len(seg)
		if current.Len() > 0 {
			needed += current.Len() + 1
		}
		if needed <= maxBytes {
			if current.Len() > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(seg)
			continue
		}
		if current.Len() > 0 {
			c := current.String()
			chunks = append(chunks, c)
			current.Reset()
			if overlap := overlapSuffix(c, overlapBytes); overlap != "" && len(overlap)+1+len(seg) <= maxBytes {
				current.WriteString(overlap)
				current.WriteByte('\n')
			}
		}
		current.WriteString(seg)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	var out []string
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// overlapSuffix returns up to n trailing bytes of text, cut at a word
// boundary so the overlap never starts mid-word.
func overlapSuffix(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	suffix := text[len(text)-n:]
	if idx := strings.Index(suffix, " "); idx >= 0 {
		return strings.TrimSpace(suffix[idx+1:])
	}
	return strings.TrimSpace(suffix)
}
