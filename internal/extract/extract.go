// Package extract turns HTML documents into the visible text that a reader
// would see, ready for tokenisation.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// invisible lists elements whose content never renders as page text.
const invisible = "script, style, noscript, template, iframe, svg, object, head > meta, head > link"

// Text parses doc and returns its visible text. Block-level boundaries become
// whitespace so words in adjacent elements never merge.
func Text(doc string) (string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	d.Find(invisible).Remove()

	var b strings.Builder
	for _, n := range d.Nodes {
		collect(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

// Title returns the trimmed <title> of doc, or "" when absent.
func Title(doc string) string {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(d.Find("title").First().Text())
}

func collect(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}
	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "address", "article", "aside", "blockquote", "br", "dd", "div", "dl", "dt",
		"fieldset", "figcaption", "figure", "footer", "form", "h1", "h2", "h3", "h4",
		"h5", "h6", "header", "hr", "li", "main", "nav", "ol", "p", "pre", "section",
		"table", "td", "th", "tr", "ul", "title", "body", "option", "button", "label":
		return true
	}
	return false
}
