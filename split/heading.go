package split

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"

	"github.com/wicaksana/docdex"
)

var _ Strategy = (*Heading)(nil)

// Heading is the structure-aware strategy: it parses the document as
// markdown and cuts parent chunks at heading boundaries, so a parent never
// straddles two sections. Each piece is tagged with its section heading as
// a best-effort category.
//
// Documents without any headings yield ErrNoStructure; the caller is
// expected to fall back to the generic strategy for that document.
type Heading struct {
	cfg    Config
	parser goldmark.Markdown
}

// NewHeading creates a Heading strategy. cfg must already be validated.
func NewHeading(cfg Config) *Heading {
	return &Heading{cfg: cfg, parser: goldmark.New()}
}

func (h *Heading) Name() string { return "heading" }

func (h *Heading) Describe() string {
	return fmt.Sprintf("heading-aware splitting: parents up to %d bytes cut at section boundaries, children up to %d bytes, sections under %d bytes merged forward",
		h.cfg.ParentSize, h.cfg.ChildSize, h.cfg.CombineUnder)
}

// section is one heading-delimited span of the source document.
type section struct {
	title string
	text  string
}

// SplitParents cuts the document at heading boundaries, merges undersized
// sections into their successor, and recursively splits sections that
// exceed the parent size (pieces keep the section's category).
func (h *Heading) SplitParents(doc docdex.Document) ([]Piece, error) {
	source := strings.TrimSpace(norm.NFC.String(doc.Text))
	if source == "" {
		return nil, nil
	}

	sections := h.sections([]byte(source))
	if len(sections) == 0 {
		return nil, ErrNoStructure
	}
	sections = h.combineSmall(sections)

	var pieces []Piece
	for _, sec := range sections {
		if len(sec.text) <= h.cfg.ParentSize {
			pieces = append(pieces, Piece{Text: sec.text, Category: sec.title})
			continue
		}
		for _, t := range chunk(sec.text, h.cfg.ParentSize, h.cfg.Overlap) {
			pieces = append(pieces, Piece{Text: t, Category: sec.title})
		}
	}
	return pieces, nil
}

// SplitChildren uses plain recursive splitting below the parent level: the
// parent already carries the structure, children only need to be small.
func (h *Heading) SplitChildren(parentText string) []string {
	return chunk(parentText, h.cfg.ChildSize, h.cfg.Overlap)
}

// sections parses source as markdown and slices it at heading boundaries.
// Returns nil when the document contains no headings.
func (h *Heading) sections(source []byte) []section {
	root := h.parser.Parser().Parse(gtext.NewReader(source))

	type headingMark struct {
		start int
		title string
	}
	var marks []headingMark

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		hd, ok := node.(*ast.Heading)
		if !ok || hd.Lines().Len() == 0 {
			continue
		}
		seg := hd.Lines().At(0)
		// Walk back from the heading text to the start of its line so the
		// section slice includes the marker itself.
		lineStart := seg.Start
		for lineStart > 0 && source[lineStart-1] != '\n' {
			lineStart--
		}
		var title strings.Builder
		for i := 0; i < hd.Lines().Len(); i++ {
			s := hd.Lines().At(i)
			title.Write(s.Value(source))
		}
		marks = append(marks, headingMark{start: lineStart, title: strings.TrimSpace(title.String())})
	}
	if len(marks) == 0 {
		return nil
	}

	var sections []section
	if pre := strings.TrimSpace(string(source[:marks[0].start])); pre != "" {
		sections = append(sections, section{text: pre})
	}
	for i, m := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		text := strings.TrimSpace(string(source[m.start:end]))
		if text != "" {
			sections = append(sections, section{title: m.title, text: text})
		}
	}
	return sections
}

// combineSmall merges sections shorter than CombineUnder into the next
// section, provided the merge stays within the parent size. The merged
// section keeps the first non-empty title.
func (h *Heading) combineSmall(sections []section) []section {
	if h.cfg.CombineUnder <= 0 || len(sections) < 2 {
		return sections
	}

	var out []section
	var pending *section
	for i := range sections {
		sec := sections[i]
		if pending != nil {
			if len(pending.text)+1+len(sec.text) <= h.cfg.ParentSize {
				title := pending.title
				if title == "" {
					title = sec.title
				}
				sec = section{title: title, text: pending.text + "\n" + sec.text}
			} else {
				out = append(out, *pending)
			}
			pending = nil
		}
		if len(sec.text) < h.cfg.CombineUnder && i < len(sections)-1 {
			pending = &sec
			continue
		}
		out = append(out, sec)
	}
	if pending != nil {
		out = append(out, *pending)
	}
	return out
}
