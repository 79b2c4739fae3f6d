package processor

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

var (
	markdownHeader = regexp.MustCompile(`^#{1,6}\s+\S`)
	markdownList   = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	markdownLink   = regexp.MustCompile(`\[.+?\]\(.+?\)`)
	htmlTag        = regexp.MustCompile(`(?i)<(p|div|span|article|section|h[1-6]|ul|ol|li|pre|code|a\s)[^>]*>`)
)

// Processor turns stored page text into clean Markdown for scoring.
type Processor struct{}

// New creates a new text processor.
func New() *Processor {
	return &Processor{}
}

// Convert transforms HTML content into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(markdown), nil
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}

// Clean returns Markdown for stored text. HTML is converted, anything else is
// returned trimmed. The second value is the HTML <title>, if any.
func (p *Processor) Clean(mediaType, content string) (string, string, error) {
	if !IsHTML(mediaType, content) {
		return strings.TrimSpace(content), "", nil
	}
	md, err := p.Convert(content)
	if err != nil {
		return "", "", err
	}
	return md, p.ExtractTitle(content), nil
}

// IsHTML reports whether stored text is HTML, checking the media type first
// and falling back to markup heuristics.
func IsHTML(mediaType, content string) bool {
	ct := strings.ToLower(mediaType)
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml") {
		return true
	}
	if IsMarkdownContentType(ct) || strings.HasPrefix(ct, "text/plain") {
		return false
	}
	trimmed := strings.TrimSpace(content)
	if looksLikeHTML(trimmed) {
		return true
	}
	if hasMarkdownPatterns(trimmed) {
		return false
	}
	return htmlTag.MatchString(trimmed)
}

// IsMarkdownContentType checks if the Content-Type header indicates markdown.
func IsMarkdownContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/markdown") ||
		strings.HasPrefix(ct, "text/x-markdown")
}

// looksLikeHTML checks if content starts like an HTML document.
func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body")
}

func hasMarkdownPatterns(content string) bool {
	return markdownHeader.MatchString(content) ||
		markdownList.MatchString(content) ||
		markdownLink.MatchString(content)
}
