// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docconvert/pkg/types"
)

// minMarkdownContent is the shortest trimmed Markdown output considered real content.
const minMarkdownContent = 10

var (
	mdHeading     = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
	mdAnchorLink  = regexp.MustCompile(`\]\(#([^)\s]+)\)`)
	mdExplicitID  = regexp.MustCompile(`\{#([^}\s]+)[^}]*\}\s*$`)
	mdSlugDropper = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)
)

// MarkdownReader opens Markdown documents.
type MarkdownReader struct{}

// Open reads the Markdown file at path.
func (MarkdownReader) Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return inspectMarkdown(string(data))
}

// Metadata returns the fields of the document's YAML frontmatter block.
// Documents without frontmatter have empty metadata.
func (MarkdownReader) Metadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	fm, _, err := splitFrontmatter(string(data))
	if err != nil {
		return Metadata{}, err
	}
	return fm, nil
}

func inspectMarkdown(content string) (*Document, error) {
	doc := &Document{Format: types.FormatMarkdown}

	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == "":
		doc.Problems = append(doc.Problems, "Output file is empty")
	case len(trimmed) < minMarkdownContent:
		doc.Problems = append(doc.Problems, "Output file contains minimal content")
	}

	fm, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	doc.Metadata = fm

	slugs := map[string]bool{}
	var inFence bool
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			doc.Blocks++
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.Blocks++
		if inFence {
			continue
		}
		if m := mdHeading.FindStringSubmatch(line); m != nil {
			doc.Headings++
			if id := mdExplicitID.FindStringSubmatch(m[1]); id != nil {
				slugs[id[1]] = true
				m[1] = strings.TrimSpace(mdExplicitID.ReplaceAllString(m[1], ""))
			}
			slugs[slugify(m[1])] = true
		}
		for _, link := range mdAnchorLink.FindAllStringSubmatch(line, -1) {
			if !slugs[link[1]] {
				// Forward references are resolved after the scan.
				doc.BrokenRefs = append(doc.BrokenRefs, link[1])
			}
		}
	}

	unresolved := doc.BrokenRefs[:0]
	for _, ref := range doc.BrokenRefs {
		if !slugs[ref] {
			unresolved = append(unresolved, "link #"+ref+" has no matching heading")
		}
	}
	doc.BrokenRefs = unresolved
	return doc, nil
}

// splitFrontmatter separates a leading "---" YAML block from the body.
func splitFrontmatter(content string) (Metadata, string, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return Metadata{}, content, nil
	}
	rest := normalized[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return Metadata{}, content, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &fields); err != nil {
		return Metadata{}, content, fmt.Errorf("parse frontmatter: %w", err)
	}

	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	return Metadata{
		Title:    stringField(fields, "title"),
		Subject:  stringField(fields, "subject"),
		Comments: strings.TrimSpace(stringField(fields, "comments") + " " + stringField(fields, "source")),
		Keywords: stringField(fields, "keywords"),
	}, body, nil
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

// slugify derives the auto identifier pandoc and GitHub assign to a heading.
func slugify(heading string) string {
	s := strings.ToLower(strings.TrimSpace(heading))
	s = mdSlugDropper.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), "-")
}
