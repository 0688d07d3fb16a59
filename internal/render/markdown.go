// Package render turns parsed posts into HTML: a goldmark pipeline for
// markdown bodies and an html/template engine for layouts. Embedded default
// layouts ship in the binary; a site's layouts directory overrides them
// file by file.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
	emoji "github.com/yuin/goldmark-emoji"
	xhtml "golang.org/x/net/html"
)

// Markdown renders post bodies to HTML with GFM tables and strikethrough,
// :emoji: shortcodes, auto heading anchors, and chroma-highlighted fenced
// code blocks. Raw HTML in the source passes through untouched.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown builds the pipeline. chromaStyle names a chroma style; an
// unknown name falls back to chroma's default.
func NewMarkdown(chromaStyle string) *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				emoji.Emoji,
				&highlightExtension{style: chromaStyle},
			),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Render converts markdown source to HTML.
func (m *Markdown) Render(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// highlightExtension swaps goldmark's fenced code renderer for a chroma one.
type highlightExtension struct {
	style string
}

func (e *highlightExtension) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&codeBlockRenderer{style: e.style}, 200),
	))
}

type codeBlockRenderer struct {
	style string
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeBlockRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}
	lang := string(n.Language(source))

	if err := highlight(w, code.String(), lang, r.style); err != nil {
		// Unhighlightable input still renders as a plain code block.
		_, _ = w.WriteString(`<pre><code>`)
		_, _ = w.WriteString(template.HTMLEscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkContinue, nil
}

// highlight writes chroma-formatted HTML with inline styles so the output
// needs no extra stylesheet.
func highlight(w util.BufWriter, source, lang, styleName string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return err
	}
	return chromahtml.New().Format(w, style, iterator)
}

// ExtractText reduces an HTML fragment to its visible text, whitespace
// normalized. The search index and PlainText field are built from it.
func ExtractText(fragment string) string {
	doc, err := xhtml.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}
