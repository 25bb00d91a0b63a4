// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/docconvert/pkg/types"
)

// HTMLReader opens HTML documents.
type HTMLReader struct{}

// Open parses the HTML file at path.
func (HTMLReader) Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return inspectHTML(data), nil
}

// Metadata returns the document <title> and the description and keywords
// <meta> elements.
func (r HTMLReader) Metadata(path string) (Metadata, error) {
	doc, err := r.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	return doc.Metadata, nil
}

// inspectHTML summarises HTML content. The DOM parser always synthesises a
// body, so an explicit <body> tag is detected with the tokenizer first.
func inspectHTML(data []byte) *Document {
	doc := &Document{Format: types.FormatHTML}
	if !hasBodyTag(data) {
		doc.Problems = append(doc.Problems, "HTML document missing body tag")
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		doc.Problems = append(doc.Problems, fmt.Sprintf("HTML validation error: %v", err))
		return doc
	}

	ids := map[string]bool{}
	var fragments []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := htmlAttr(n, "id"); id != "" {
				ids[id] = true
			}

			switch n.DataAtom {
			case atom.Title:
				if doc.Metadata.Title == "" {
					doc.Metadata.Title = strings.TrimSpace(htmlText(n))
				}
			case atom.Meta:
				switch strings.ToLower(htmlAttr(n, "name")) {
				case "description", "subject":
					doc.Metadata.Subject = htmlAttr(n, "content")
				case "keywords":
					doc.Metadata.Keywords = htmlAttr(n, "content")
				case "comments", "source":
					doc.Metadata.Comments = htmlAttr(n, "content")
				}
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				doc.Headings++
				doc.Blocks++
			case atom.P, atom.Li, atom.Table, atom.Pre, atom.Blockquote:
				doc.Blocks++
			case atom.A:
				name := htmlAttr(n, "name")
				if name != "" {
					ids[name] = true
				}
				href, ok := htmlAttrOK(n, "href")
				switch {
				case !ok || strings.TrimSpace(href) == "":
					if name == "" {
						doc.EmptyLinks++
					}
				case strings.HasPrefix(href, "#") && len(href) > 1:
					fragments = append(fragments, href[1:])
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, f := range fragments {
		if !ids[f] {
			doc.BrokenRefs = append(doc.BrokenRefs, "link #"+f+" has no target")
		}
	}
	if doc.Blocks == 0 {
		doc.Problems = append(doc.Problems, "HTML document has no content blocks")
	}
	return doc
}

// hasBodyTag reports whether data contains an explicit <body> start tag.
func hasBodyTag(data []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				return true
			}
		}
	}
}

func htmlAttr(n *html.Node, key string) string {
	v, _ := htmlAttrOK(n, key)
	return v
}

func htmlAttrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func htmlText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
