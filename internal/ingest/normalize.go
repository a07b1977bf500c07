package ingest

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// maxDescriptionLen bounds the normalized description; feeds routinely ship
// whole articles in the description field.
const maxDescriptionLen = 500

// reHTMLTag matches HTML tags.
var reHTMLTag = regexp.MustCompile(`<[^>]*>`)

// reBlockClose matches tag boundaries that end a line of text; they become
// spaces so words from adjacent paragraphs don't fuse when tags are stripped.
var reBlockClose = regexp.MustCompile(`(?i)</(?:p|div|li|h[1-6]|tr|blockquote)>|<br\s*/?>`)

// reWhitespace matches sequences of whitespace (spaces, tabs, newlines).
var reWhitespace = regexp.MustCompile(`\s+`)

// reImgTag matches <img> tags; the src attribute is pulled out separately so
// the tag's other attributes can be inspected for tracking-pixel hints.
var reImgTag = regexp.MustCompile(`(?i)<img[^>]*>`)

var reImgSrc = regexp.MustCompile(`(?i)src=["']([^"']+)["']`)

// cleanSnippet strips HTML tags from feed text and collapses it to a single
// line.
func cleanSnippet(html string) string {
	if html == "" {
		return ""
	}

	text := reBlockClose.ReplaceAllString(html, " ")
	text = reHTMLTag.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&apos;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// truncate shortens a string to the given maximum length, appending "..." if
// truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// itemImage applies the feed-side image policy: a typed image enclosure wins,
// then the media extensions, then a typeless enclosure, then the first inline
// <img> that isn't a tracking pixel.
func itemImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") {
			if u := normalizeImageURL(enc.URL); u != "" {
				return u
			}
		}
	}

	if u := mediaImage(item); u != "" {
		return u
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" || enc.Type != "" {
			continue
		}
		if u := normalizeImageURL(enc.URL); u != "" {
			return u
		}
	}

	for _, html := range []string{item.Content, item.Description} {
		if u := firstInlineImage(html); u != "" {
			return u
		}
	}
	return ""
}

// mediaImage pulls an image URL out of the media RSS extensions:
// media:content, media:thumbnail, then media:content nested in media:group.
func mediaImage(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}

	for _, ext := range media["content"] {
		if u := normalizeImageURL(ext.Attrs["url"]); u != "" {
			return u
		}
	}
	for _, ext := range media["thumbnail"] {
		if u := normalizeImageURL(ext.Attrs["url"]); u != "" {
			return u
		}
	}
	for _, group := range media["group"] {
		for _, ext := range group.Children["content"] {
			if u := normalizeImageURL(ext.Attrs["url"]); u != "" {
				return u
			}
		}
	}
	return ""
}

// firstInlineImage returns the src of the first <img> in the HTML, skipping
// 1x1 tracking pixels.
func firstInlineImage(html string) string {
	if html == "" {
		return ""
	}
	for _, tag := range reImgTag.FindAllString(html, -1) {
		m := reImgSrc.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		if isTrackingPixel(tag, m[1]) {
			continue
		}
		if u := normalizeImageURL(m[1]); u != "" {
			return u
		}
	}
	return ""
}

func isTrackingPixel(tag, src string) bool {
	lower := strings.ToLower(tag)
	if strings.Contains(lower, `width="1"`) || strings.Contains(lower, `height="1"`) ||
		strings.Contains(lower, `width='1'`) || strings.Contains(lower, `height='1'`) {
		return true
	}
	return strings.Contains(strings.ToLower(src), "1x1")
}

// normalizeImageURL upgrades scheme-relative URLs and rejects anything that
// isn't plain http(s).
func normalizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return ""
	}
	return raw
}
