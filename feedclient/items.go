package feedclient

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"newsdeck/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

func convertItem(item *gofeed.Item, summaryLength int) models.RawItem {
	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}

	html := item.Description
	if strings.TrimSpace(html) == "" {
		html = item.Content
	}

	return models.RawItem{
		Title:        strings.TrimSpace(item.Title),
		Link:         strings.TrimSpace(link),
		Published:    publishedString(item),
		Summary:      Summarize(html, summaryLength),
		ThumbnailUrl: thumbnail(item, html),
	}
}

// publishedString prefers the timestamp gofeed already understood and
// re-encodes it as RFC3339. Otherwise the raw string is passed through.
// gofeed reads zone names such as EST as UTC, so those stay raw as well.
func publishedString(item *gofeed.Item) string {
	switch {
	case item.Published != "" && (item.PublishedParsed == nil || endsInZoneName(item.Published)):
		return item.Published
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(time.RFC3339)
	case item.Updated != "" && (item.UpdatedParsed == nil || endsInZoneName(item.Updated)):
		return item.Updated
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Format(time.RFC3339)
	default:
		return ""
	}
}

// endsInZoneName reports whether the last word of value is alphabetic, as
// in "Wed, 03 Jan 2024 10:00:00 EST"
func endsInZoneName(value string) bool {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return false
	}
	last := fields[len(fields)-1]
	return strings.IndexFunc(last, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) == -1
}

// Summarize strips markup from html and cuts the text to maxRunes runes,
// appending "..." when something was cut.
func Summarize(html string, maxRunes int) string {
	text := stripHtml(html)
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

func stripHtml(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}

	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func thumbnail(item *gofeed.Item, html string) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if u := thumb.Attrs["url"]; u != "" {
				return u
			}
		}
		for _, content := range media["content"] {
			if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") {
				if u := content.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}

	return firstImage(html)
}

func firstImage(html string) string {
	if !strings.Contains(html, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}
