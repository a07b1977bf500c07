package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	batchExecuteURL = "https://news.google.com/_/DotsSplashUi/data/batchexecute"

	// maxResponseBytes bounds how much of a decoder or trampoline response we
	// are willing to read.
	maxResponseBytes = 1 << 20
)

var reWindowLocation = regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`)

// batchExecute asks the aggregator's internal decoder for the publisher URL
// behind an encoded article id. The response carries an anti-XSSI prefix and
// a doubly-encoded JSON payload, so rather than unpicking the envelope we
// byte-scan it for the first non-Google URL.
func (r *Resolver) batchExecute(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}

	inner := []any{[]any{"en-US", "US", []any{id}}}
	for i := 0; i < 30; i++ {
		inner = append(inner, nil)
	}
	innerJSON, err := json.Marshal([]any{"garturlreq", []any{inner}})
	if err != nil {
		return "", fmt.Errorf("resolve encode request: %w", err)
	}
	envelope, err := json.Marshal([]any{[]any{[]any{"Fbv4je", string(innerJSON), nil, "generic"}}})
	if err != nil {
		return "", fmt.Errorf("resolve encode envelope: %w", err)
	}

	form := url.Values{"f.req": {string(envelope)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.batchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("resolve build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Referer", aggregatorRoot)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve batch call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve batch call: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("resolve read response: %w", err)
	}

	for _, candidate := range scanURLs(body) {
		if reCandidate.MatchString(candidate) && acceptableTarget(candidate) {
			return canonicalTarget(candidate), nil
		}
	}
	return "", nil
}

// trampoline fetches an aggregator redirect page and follows whatever
// client-side redirect mechanism it carries: meta refresh, a window.location
// assignment, a data-url attribute, or a plain outbound anchor.
func (r *Resolver) trampoline(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("resolve build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Referer", aggregatorRoot)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve trampoline fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve trampoline fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("resolve read response: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("resolve parse page: %w", err)
	}

	if target := metaRefreshTarget(doc); target != "" {
		return target, nil
	}
	if m := reWindowLocation.FindSubmatch(body); m != nil {
		if candidate := string(m[1]); acceptableTarget(candidate) {
			return canonicalTarget(candidate), nil
		}
	}
	if candidate := doc.Find("[data-url]").First().AttrOr("data-url", ""); acceptableTarget(candidate) {
		return canonicalTarget(candidate), nil
	}

	target := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if !strings.HasPrefix(href, "http") || !acceptableTarget(href) {
			return true
		}
		target = canonicalTarget(href)
		return false
	})
	return target, nil
}

// metaRefreshTarget pulls the url= part out of a meta refresh tag, if the
// page has one.
func metaRefreshTarget(doc *goquery.Document) string {
	target := ""
	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.EqualFold(sel.AttrOr("http-equiv", ""), "refresh") {
			return true
		}
		content := sel.AttrOr("content", "")
		idx := strings.Index(strings.ToLower(content), "url=")
		if idx < 0 {
			return true
		}
		candidate := strings.Trim(strings.TrimSpace(content[idx+len("url="):]), `'"`)
		if !acceptableTarget(candidate) {
			return true
		}
		target = canonicalTarget(candidate)
		return false
	})
	return target
}
