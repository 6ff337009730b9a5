package ai

import (
	"errors"
	"html"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEmptyRewrite is returned when nothing usable is left of a model reply.
var ErrEmptyRewrite = errors.New("rewrite is empty after cleanup")

// PostProcessor turns raw model output into Telegram HTML.
type PostProcessor struct {
	maxRunes int
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{maxRunes: 4096}
}

var (
	codeFence     = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	markdownBold  = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	extraNewlines = regexp.MustCompile(`\n{3,}`)
)

// allowedTags are the formatting tags the Bot API accepts in HTML mode.
var allowedTags = map[atom.Atom]bool{
	atom.B: true, atom.Strong: true,
	atom.I: true, atom.Em: true,
	atom.U: true, atom.Ins: true,
	atom.S: true, atom.Strike: true, atom.Del: true,
	atom.A: true, atom.Code: true, atom.Pre: true,
	atom.Blockquote: true,
}

// Process cleans a model reply. Unknown tags are dropped but their text is
// kept, and all text is escaped so the Bot API can parse the result.
func (p *PostProcessor) Process(raw string) (string, error) {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = codeFence.ReplaceAllString(s, "")
	s = controlChars.ReplaceAllString(s, "")
	s = markdownBold.ReplaceAllString(s, "<b>$1</b>")

	nodes, err := xhtml.ParseFragment(strings.NewReader(s), &xhtml.Node{
		Type:     xhtml.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range nodes {
		render(&b, n)
	}

	out := extraNewlines.ReplaceAllString(b.String(), "\n\n")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyRewrite
	}
	if len([]rune(out)) > p.maxRunes {
		out = string([]rune(out)[:p.maxRunes])
	}
	return out, nil
}

func render(b *strings.Builder, n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case xhtml.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Iframe, atom.Object, atom.Embed, atom.Head:
		return
	case atom.Br:
		b.WriteString("\n")
		return
	}

	if !allowedTags[n.DataAtom] {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			render(b, c)
		}
		if n.DataAtom == atom.P || n.DataAtom == atom.Div || n.DataAtom == atom.Li {
			b.WriteString("\n")
		}
		return
	}

	b.WriteString("<")
	b.WriteString(n.Data)
	if n.DataAtom == atom.A {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				b.WriteString(` href="`)
				b.WriteString(html.EscapeString(attr.Val))
				b.WriteString(`"`)
			}
		}
	}
	b.WriteString(">")
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.Data)
	b.WriteString(">")
}
