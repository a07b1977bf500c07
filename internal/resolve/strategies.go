package resolve

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// reCandidate is the shape a decoded byte-scan candidate must have before it
// is trusted as a publisher URL.
var reCandidate = regexp.MustCompile(`^https?://[a-z0-9]`)

// AnchorTarget scans the raw item payload (content, description, summary,
// whatever the feed shipped) for the first anchor pointing outside the
// aggregator's domain family. Aggregator feeds routinely embed the publisher
// link inside the item HTML even when the item URL itself is opaque.
func AnchorTarget(payload string) string {
	if payload == "" || !strings.Contains(payload, "<a") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
	if err != nil {
		return ""
	}

	target := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if !acceptableTarget(href) {
			return true
		}
		target = canonicalTarget(href)
		return false
	})
	return target
}

// DecodeArticleURL recovers a publisher URL from the base64url-encoded id in
// an /articles/<id> path. Older id formats embed the target URL as plain
// bytes inside the decoded payload; newer ones don't, and fall through to the
// network strategies.
func DecodeArticleURL(rawURL string) string {
	id := articleID(rawURL)
	if id == "" {
		return ""
	}

	// base64url to the standard alphabet, padded to a multiple of four.
	enc := strings.ReplaceAll(id, "-", "+")
	enc = strings.ReplaceAll(enc, "_", "/")
	if rem := len(enc) % 4; rem != 0 {
		enc += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return ""
	}

	for _, candidate := range scanURLs(decoded) {
		if reCandidate.MatchString(candidate) && acceptableTarget(candidate) {
			return canonicalTarget(candidate)
		}
	}
	return ""
}

// scanURLs walks a byte buffer for every "http" occurrence and extends each
// into a candidate URL while the bytes stay printable ASCII. Quotes and
// backslashes terminate a candidate so the scan also works inside JSON
// payloads.
func scanURLs(data []byte) []string {
	var out []string
	for i := 0; i+4 <= len(data); i++ {
		if data[i] != 'h' || string(data[i:i+4]) != "http" {
			continue
		}
		end := i
		for end < len(data) {
			b := data[end]
			if b < 0x21 || b > 0x7e || b == '"' || b == '\\' {
				break
			}
			end++
		}
		if end > i+4 {
			out = append(out, string(data[i:end]))
		}
		i = end
	}
	return out
}

// trackingParams are query parameters stripped from resolved publisher URLs;
// they only differ per-click and break downstream URL dedup.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"utm_id":       true,
	"fbclid":       true,
	"gclid":        true,
	"gclsrc":       true,
	"dclid":        true,
	"msclkid":      true,
	"twclid":       true,
	"mc_cid":       true,
	"mc_eid":       true,
	"_ga":          true,
	"_gl":          true,
}

// canonicalTarget normalizes an accepted publisher URL: lowercased scheme and
// host, no fragment, tracking parameters removed, query keys sorted.
func canonicalTarget(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	query := parsed.Query()
	for key := range query {
		if trackingParams[strings.ToLower(key)] {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}
