package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MessageLimit is the outbound message budget. Telegram caps messages at
// 4096 characters; the margin absorbs HTML tags added by rendering.
const MessageLimit = 3800

// RenderHTML converts model output Markdown into Telegram's HTML subset:
// b, i, s, code, pre, and a. Everything Telegram cannot render (headings,
// lists, quotes) degrades to plain text with sensible separators.
func RenderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))

	var b strings.Builder
	ast.Walk(doc, ast.NodeVisitorFunc(func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				b.WriteString(html.EscapeString(string(n.Literal)))
			}
		case *ast.Code:
			if entering {
				b.WriteString("<code>")
				b.WriteString(html.EscapeString(string(n.Literal)))
				b.WriteString("</code>")
			}
		case *ast.CodeBlock:
			if entering {
				b.WriteString("<pre>")
				b.WriteString(html.EscapeString(strings.TrimRight(string(n.Literal), "\n")))
				b.WriteString("</pre>\n")
			}
		case *ast.Strong:
			if entering {
				b.WriteString("<b>")
			} else {
				b.WriteString("</b>")
			}
		case *ast.Emph:
			if entering {
				b.WriteString("<i>")
			} else {
				b.WriteString("</i>")
			}
		case *ast.Del:
			if entering {
				b.WriteString("<s>")
			} else {
				b.WriteString("</s>")
			}
		case *ast.Link:
			if entering {
				fmt.Fprintf(&b, `<a href="%s">`, html.EscapeString(string(n.Destination)))
			} else {
				b.WriteString("</a>")
			}
		case *ast.Heading:
			if entering {
				b.WriteString("<b>")
			} else {
				b.WriteString("</b>\n")
			}
		case *ast.Paragraph:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("• ")
			}
		case *ast.Hardbreak, *ast.Softbreak:
			if entering {
				b.WriteString("\n")
			}
		case *ast.HTMLSpan:
			if entering {
				b.WriteString(html.EscapeString(string(n.Literal)))
			}
		case *ast.HTMLBlock:
			if entering {
				b.WriteString(html.EscapeString(string(n.Literal)))
				b.WriteString("\n")
			}
		}
		return ast.GoToNext
	}))

	return collapseBlankLines(strings.TrimSpace(b.String()))
}

// collapseBlankLines squeezes runs of three or more newlines down to a
// single blank line. List items and nested paragraphs otherwise leave gaps.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

// SplitMessage splits text into pieces no longer than limit bytes, breaking
// at paragraph or line boundaries when possible and never inside a rune.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}

	var parts []string
	for len(text) > limit {
		cut := splitPoint(text, limit)
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// splitPoint picks the best break position within the first limit bytes:
// a blank line, then a newline, then a space, then a hard rune-boundary cut.
func splitPoint(text string, limit int) int {
	window := text[:limit]
	if i := strings.LastIndex(window, "\n\n"); i > limit/2 {
		return i
	}
	if i := strings.LastIndex(window, "\n"); i > limit/2 {
		return i
	}
	if i := strings.LastIndex(window, " "); i > limit/2 {
		return i
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return cut
}
