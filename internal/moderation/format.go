package moderation

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/utils"
	xhtml "golang.org/x/net/html"
)

// Telegram limits, in characters.
const (
	MaxMessageText  = 4096
	MaxPhotoCaption = 1024
	// MaxChannelCaption leaves headroom under MaxPhotoCaption for the channel post.
	MaxChannelCaption = 1000
)

const (
	publishedMarker = "✅ Published\n\n"
	rejectedMarker  = "❌ Rejected\n\n"
	ellipsis        = "…"
)

// TruncateHTML shortens Telegram HTML to at most limit runes. Tags are never
// split and every tag left open by the cut is closed.
func TruncateHTML(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	var (
		b    strings.Builder
		open []string
		used int
	)
	closers := func() int {
		n := 0
		for _, name := range open {
			n += len(name) + 3
		}
		return n
	}
	room := func() int {
		return limit - used - closers() - utf8.RuneCountInString(ellipsis)
	}

	z := xhtml.NewTokenizer(strings.NewReader(s))
loop:
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			break
		}
		raw := string(z.Raw())
		n := utf8.RuneCountInString(raw)

		switch tt {
		case xhtml.TextToken:
			if n <= room() {
				b.WriteString(raw)
				used += n
				continue
			}
			cut := utils.Truncate(raw, max(room(), 0))
			if i := strings.LastIndex(cut, "&"); i >= 0 && !strings.Contains(cut[i:], ";") {
				cut = cut[:i]
			}
			b.WriteString(cut)
			break loop
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			if n+len(name)+3 > room() {
				break loop
			}
			b.WriteString(raw)
			used += n
			open = append(open, string(name))
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			if len(open) > 0 && open[len(open)-1] == string(name) {
				// the closer was already reserved
				b.WriteString(raw)
				used += n
				open = open[:len(open)-1]
			}
		case xhtml.SelfClosingTagToken:
			if n > room() {
				break loop
			}
			b.WriteString(raw)
			used += n
		}
	}

	b.WriteString(ellipsis)
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}
	return b.String()
}

// PlainText drops markup and decodes entities.
func PlainText(s string) string {
	var b strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return b.String()
		}
		if tt == xhtml.TextToken {
			b.Write(z.Text())
		}
	}
}

// ChannelPost renders the public post: source, text and article url.
// The text is shortened so that source and url always fit in limit.
func ChannelPost(p *models.Post, limit int) string {
	head := html.EscapeString(p.Source) + "\n\n"
	tail := "\n\n" + html.EscapeString(p.URL)
	budget := limit - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	return head + TruncateHTML(p.Text, max(budget, 0)) + tail
}

// decidedText is the plain-text body a moderation message is edited to.
func decidedText(status models.Status, body string, limit int) string {
	marker := rejectedMarker
	if status == models.StatusPublished {
		marker = publishedMarker
	}
	return utils.Truncate(marker+body, limit)
}
