package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var controlChars = regexp.MustCompile(`[\x{0000}-\x{001F}\x{007F}-\x{009F}]`)

// sanitize removes C0 and C1 control code points and trims the result.
func sanitize(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// plainText strips markup from posting text. Input without a tag is only
// sanitized. Block-level elements become line breaks.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return sanitize(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return sanitize(s)
	}
	var sb strings.Builder
	textContent(doc, &sb)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(sanitize(l)), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "tr": true, "table": true,
}

func textContent(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textContent(c, sb)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteByte('\n')
	}
}
