package markup

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/totegamma/logbook/internal/domain"
)

const (
	NameNone       = "none"
	NameCommonmark = "commonmark"
)

// Processor derives the stored description and source of a draft.
type Processor interface {
	Name() string
	Process(draft domain.LogDraft) domain.LogDraft
}

// New returns the processor registered under name. Unknown names fall back to none.
func New(name string) Processor {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameCommonmark:
		return NewCommonmark()
	default:
		return None{}
	}
}

// None keeps the description and copies it into source.
type None struct{}

func (None) Name() string { return NameNone }

func (None) Process(draft domain.LogDraft) domain.LogDraft {
	draft.Source = draft.Description
	return draft
}

// Commonmark keeps the submitted markup as source and replaces the description
// with the plain text of the rendered document.
type Commonmark struct {
	md goldmark.Markdown
}

func NewCommonmark() *Commonmark {
	return &Commonmark{md: goldmark.New()}
}

func (c *Commonmark) Name() string { return NameCommonmark }

func (c *Commonmark) Process(draft domain.LogDraft) domain.LogDraft {
	draft.Source = draft.Description
	draft.Description = c.PlainText(draft.Description)
	return draft
}

// PlainText renders markup to text: one line per block, inline formatting dropped.
func (c *Commonmark) PlainText(markup string) string {
	src := []byte(markup)
	doc := c.md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				endLine(&b)
			}
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.URL(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

func endLine(b *strings.Builder) {
	s := b.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}
