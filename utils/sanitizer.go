package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// StrictPolicy strips all markup from user-entered text fields
	StrictPolicy *bluemonday.Policy
	// DescriptionPolicy keeps the basic formatting pasted job
	// descriptions tend to carry
	DescriptionPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	DescriptionPolicy = bluemonday.UGCPolicy()
	DescriptionPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4")
	DescriptionPolicy.AllowElements("strong", "em", "u", "code", "pre")
	DescriptionPolicy.AllowElements("ul", "ol", "li", "blockquote", "a")
	DescriptionPolicy.AllowAttrs("href").OnElements("a")
	DescriptionPolicy.RequireParseableURLs(true)
	DescriptionPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeDescription sanitizes a pasted job description for rendering.
func SanitizeDescription(content string) string {
	return DescriptionPolicy.Sanitize(content)
}

// SanitizeStrict removes all HTML from content.
func SanitizeStrict(content string) string {
	return StrictPolicy.Sanitize(content)
}

// TextPreview extracts up to max characters of plain text from possibly
// HTML content, for the description column in the jobs table.
func TextPreview(content string, max int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(content))

	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.TextToken {
			continue
		}

		text := strings.TrimSpace(string(tokenizer.Text()))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
		if b.Len() >= max {
			break
		}
	}

	preview := b.String()
	if len(preview) > max {
		cut := strings.LastIndexByte(preview[:max], ' ')
		if cut <= 0 {
			cut = max
		}
		preview = preview[:cut] + "…"
	}
	return preview
}
