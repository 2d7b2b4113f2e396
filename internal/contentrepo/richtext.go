// Legacy descriptions arrive as a soup of presentational HTML from the
// old site's WYSIWYG editor. This file converts that markup into the
// ordered block structure the content repository stores.

package contentrepo

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Block is one rich text unit of a document body.
type Block struct {
	Type  string   `json:"type"` // "paragraph", "heading" or "list"
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// BlocksFromLegacyHTML converts legacy description markup into ordered
// blocks. Plain text without markup becomes paragraphs split on blank
// lines. Unknown tags contribute their text, never their markup.
func BlocksFromLegacyHTML(raw string) []Block {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "<") {
		return plainTextBlocks(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return plainTextBlocks(raw)
	}

	var blocks []Block
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		body.Contents().Each(func(_ int, sel *goquery.Selection) {
			blocks = append(blocks, nodeBlocks(sel)...)
		})
	})
	return blocks
}

func nodeBlocks(sel *goquery.Selection) []Block {
	node := sel.Get(0)
	if node == nil {
		return nil
	}

	if node.Type == html.TextNode {
		if text := collapseWhitespace(node.Data); text != "" {
			return []Block{{Type: "paragraph", Text: text}}
		}
		return nil
	}
	if node.Type != html.ElementNode {
		return nil
	}

	switch node.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if text := collapseWhitespace(sel.Text()); text != "" {
			return []Block{{Type: "heading", Text: text}}
		}
		return nil
	case "ul", "ol":
		var items []string
		sel.Find("li").Each(func(_ int, li *goquery.Selection) {
			if item := collapseWhitespace(li.Text()); item != "" {
				items = append(items, item)
			}
		})
		if len(items) > 0 {
			return []Block{{Type: "list", Items: items}}
		}
		return nil
	case "br", "script", "style":
		return nil
	case "div", "p", "font", "center", "span", "table", "td", "tr", "tbody":
		// Old editors nested block content arbitrarily. <br> runs inside
		// a container split it into separate paragraphs.
		return splitOnBreaks(sel)
	default:
		if text := collapseWhitespace(sel.Text()); text != "" {
			return []Block{{Type: "paragraph", Text: text}}
		}
		return nil
	}
}

// splitOnBreaks renders a container's inline text, treating <br> as a
// paragraph boundary and recursing into nested block elements.
func splitOnBreaks(sel *goquery.Selection) []Block {
	var blocks []Block
	var current strings.Builder

	flush := func() {
		if text := collapseWhitespace(current.String()); text != "" {
			blocks = append(blocks, Block{Type: "paragraph", Text: text})
		}
		current.Reset()
	}

	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		if node == nil {
			return
		}
		switch {
		case node.Type == html.TextNode:
			current.WriteString(node.Data)
		case node.Type == html.ElementNode && node.Data == "br":
			flush()
		case node.Type == html.ElementNode && isInline(node.Data):
			current.WriteString(" " + child.Text() + " ")
		case node.Type == html.ElementNode:
			flush()
			blocks = append(blocks, nodeBlocks(child)...)
		}
	})
	flush()
	return blocks
}

func isInline(tag string) bool {
	switch tag {
	case "a", "b", "i", "u", "em", "strong", "span", "font", "small", "sub", "sup":
		return true
	}
	return false
}

func plainTextBlocks(text string) []Block {
	var blocks []Block
	for _, para := range strings.Split(text, "\n\n") {
		if p := collapseWhitespace(para); p != "" {
			blocks = append(blocks, Block{Type: "paragraph", Text: p})
		}
	}
	return blocks
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
