// Package linkpreview fetches Open Graph metadata for URLs shared in chat so
// the archive stores what a link pointed at, not just its address.
package linkpreview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/domain"

	"golang.org/x/net/html"
)

// maxBodyBytes caps how much of a page is read while looking for meta tags.
const maxBodyBytes = 512 * 1024

// Extractor fetches pages and pulls Open Graph tags out of their head.
type Extractor struct {
	httpClient *http.Client
}

// NewExtractor creates a new Open Graph extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Extract fetches url and returns link-preview content built from its Open
// Graph tags. Any failure degrades to plain text content holding the bare
// URL, so a dead link never blocks archiving.
func (e *Extractor) Extract(ctx context.Context, url string) domain.Content {
	preview, err := e.fetch(ctx, url)
	if err != nil {
		return domain.TextContent(url)
	}
	return domain.PreviewContent(preview)
}

func (e *Extractor) fetch(ctx context.Context, url string) (domain.LinkPreview, error) {
	preview := domain.LinkPreview{URL: url}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return preview, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return preview, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return preview, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tags, err := parseMetaTags(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return preview, err
	}

	preview.Title = tags["og:title"]
	preview.Description = tags["og:description"]
	preview.SiteName = tags["og:site_name"]
	preview.ImageURL = tags["og:image"]

	if preview.Title == "" && preview.Description == "" {
		return preview, fmt.Errorf("no open graph tags found")
	}
	return preview, nil
}

// parseMetaTags tokenizes HTML and collects og:* meta properties. Tokenizing
// stops at the closing head tag since meta tags never appear later.
func parseMetaTags(body io.Reader) (map[string]string, error) {
	tags := make(map[string]string)
	tokenizer := html.NewTokenizer(body)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return tags, nil
			}
			return tags, fmt.Errorf("failed to parse html: %w", tokenizer.Err())
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "head" {
				return tags, nil
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}
			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch string(key) {
				case "property", "name":
					property = string(val)
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}
			if strings.HasPrefix(property, "og:") && content != "" {
				if _, seen := tags[property]; !seen {
					tags[property] = content
				}
			}
		}
	}
}
