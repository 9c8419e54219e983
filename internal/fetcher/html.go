package fetcher

import (
	"html"
	"regexp"
	"strings"
)

var (
	titleRe     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	dropBlockRe = regexp.MustCompile(`(?is)<(script|style|nav|footer|noscript|svg)\b[^>]*>.*?</(?:script|style|nav|footer|noscript|svg)>`)
	paragraphRe = regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	spaceRe     = regexp.MustCompile(`\s+`)
	metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9_\-]+)`)
)

// extractTitle pulls the <title> from HTML.
func extractTitle(doc string) string {
	m := titleRe.FindStringSubmatch(doc)
	if len(m) < 2 {
		return ""
	}
	return cleanText(m[1])
}

// extractParagraphs returns the text of every non-empty <p> element outside
// script, style, nav and footer blocks, in document order.
func extractParagraphs(doc string) []string {
	doc = dropBlockRe.ReplaceAllString(doc, "")
	var out []string
	for _, m := range paragraphRe.FindAllStringSubmatch(doc, -1) {
		if text := cleanText(m[1]); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// cleanText strips tags, decodes entities and collapses whitespace.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// sniffCharset finds a <meta charset> declaration in the document head.
func sniffCharset(body []byte) string {
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	m := metaCharset.FindSubmatch(head)
	if len(m) < 2 {
		return ""
	}
	return string(m[1])
}
