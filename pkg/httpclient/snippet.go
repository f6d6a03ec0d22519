package httpclient

import (
	"bytes"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxSnippetBytes = 512

// bodySnippet renders a short, single-line view of a response body for error
// messages. HTML error pages (gateways, load balancers) are reduced to their text.
func bodySnippet(contentType string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	text := ""
	if isHTMLContentType(contentType) {
		text = htmlText(body)
	}
	if text == "" {
		text = string(body)
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxSnippetBytes {
		text = text[:maxSnippetBytes] + "..."
	}
	return text
}

// htmlText extracts the title and visible body text of an HTML document.
func htmlText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.Join(textNodes(doc.Find("body")), " ")
	switch {
	case title == "":
		return text
	case text == "":
		return title
	case strings.HasPrefix(text, title):
		return text
	default:
		return title + ": " + text
	}
}

func isHTMLContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func isJSONContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// textNodes collects non-blank text nodes in document order so that adjacent
// block elements do not run together.
func textNodes(sel *goquery.Selection) []string {
	var parts []string
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			if t := strings.TrimSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
			return
		}
		parts = append(parts, textNodes(s)...)
	})
	return parts
}
