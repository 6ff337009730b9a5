package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/utils"
	"github.com/mmcdole/gofeed"
)

const (
	maxTitleRunes       = 200
	maxDescriptionRunes = 500
	untitled            = "Untitled"
)

// Parser turns feed documents into candidates.
type Parser struct {
	maxItems int
	now      func() time.Time
}

func NewParser(maxItemsPerFeed int) *Parser {
	if maxItemsPerFeed <= 0 {
		maxItemsPerFeed = 2
	}
	return &Parser{maxItems: maxItemsPerFeed, now: time.Now}
}

// CleanHTML strips markup and normalizes whitespace.
func CleanHTML(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return strings.Join(strings.Fields(input), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// SourceMeta derives a provenance label and emoji from the feed url.
func SourceMeta(feedURL string) (string, string) {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return "Unknown", "❓"
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "reddit.com"):
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] == "r" && parts[1] != "" {
			return "Reddit/" + parts[1], "👥"
		}
		return "Reddit/reddit", "👥"
	case strings.Contains(host, "arxiv.org"):
		return "arXiv", "📜"
	case strings.Contains(host, "technologyreview.com"):
		return "MIT Tech Review", "🔬"
	case strings.Contains(host, "openai.com"):
		return "OpenAI", "🤖"
	case strings.Contains(host, "deepmind"):
		return "DeepMind", "🧠"
	default:
		return strings.TrimPrefix(host, "www."), "🌐"
	}
}

// Parse reads an RSS or Atom document and returns candidates for its first
// entries. Entries without a link, or linking back to the feed itself, are skipped.
func (p *Parser) Parse(doc Document) ([]models.Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", doc.URL, err)
	}

	source, emoji := SourceMeta(doc.URL)

	items := feed.Items
	if len(items) > p.maxItems {
		items = items[:p.maxItems]
	}

	candidates := make([]models.Candidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" || link == doc.URL {
			continue
		}

		title := utils.Truncate(CleanHTML(item.Title), maxTitleRunes)
		if title == "" {
			title = untitled
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		candidates = append(candidates, models.Candidate{
			Title:       emoji + " " + title,
			Description: utils.Truncate(CleanHTML(description), maxDescriptionRunes),
			Source:      source,
			URL:         link,
			PublishedAt: p.publishedAt(item),
		})
	}

	return candidates, nil
}

func (p *Parser) publishedAt(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}
	return p.now().UTC()
}
