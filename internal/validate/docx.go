// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/pdiddy/docconvert/pkg/types"
)

const (
	docxMainPart     = "word/document.xml"
	docxMainRels     = "word/_rels/document.xml.rels"
	docxContentTypes = "[Content_Types].xml"
	docxCoreProps    = "docProps/core.xml"

	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// DocxReader opens Office Open XML word-processing documents.
type DocxReader struct{}

// Open reads the main document part, its relationships, and the core
// properties of the .docx archive at p.
func (DocxReader) Open(p string) (*Document, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	parts := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		parts[f.Name] = f
	}

	main, ok := parts[docxMainPart]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", docxMainPart)
	}

	doc := &Document{Format: types.FormatDocx}
	if _, ok := parts[docxContentTypes]; !ok {
		doc.Problems = append(doc.Problems, "DOCX archive is missing "+docxContentTypes)
	}

	body, err := scanDocxBody(main)
	if err != nil {
		return nil, err
	}
	doc.Blocks = body.paragraphs
	doc.Headings = body.headings
	doc.EmptyLinks = body.emptyLinks
	if doc.Blocks == 0 {
		doc.Problems = append(doc.Problems, "DOCX document has no paragraphs")
	}

	rels := map[string]docxRelationship{}
	if f, ok := parts[docxMainRels]; ok {
		if rels, err = readDocxRels(f); err != nil {
			return nil, err
		}
	}
	doc.BrokenRefs = docxBrokenRefs(body, rels, parts)

	if f, ok := parts[docxCoreProps]; ok {
		if doc.Metadata, err = readDocxCore(f); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Metadata returns the core properties of the .docx at p.
func (r DocxReader) Metadata(p string) (Metadata, error) {
	doc, err := r.Open(p)
	if err != nil {
		return Metadata{}, err
	}
	return doc.Metadata, nil
}

type docxBody struct {
	paragraphs int
	headings   int
	emptyLinks int
	relIDs     []string
	anchors    []string
	bookmarks  map[string]bool
}

// scanDocxBody walks word/document.xml counting paragraphs and collecting
// relationship ids, hyperlink anchors, and bookmark names.
func scanDocxBody(f *zip.File) (*docxBody, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	body := &docxBody{bookmarks: map[string]bool{}}
	seenRel := map[string]bool{}
	decoder := xml.NewDecoder(rc)

	var inParagraph bool
	var paragraphStyle string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			for _, a := range t.Attr {
				if a.Name.Space == nsRelationships && a.Value != "" && !seenRel[a.Value] {
					seenRel[a.Value] = true
					body.relIDs = append(body.relIDs, a.Value)
				}
			}

			switch t.Name.Local {
			case "p":
				inParagraph = true
				paragraphStyle = ""
			case "pStyle":
				if inParagraph {
					paragraphStyle = attrValue(t, "val")
				}
			case "hyperlink":
				anchor := attrValue(t, "anchor")
				id := attrValueNS(t, nsRelationships, "id")
				switch {
				case anchor != "":
					body.anchors = append(body.anchors, anchor)
				case id == "":
					body.emptyLinks++
				}
			case "bookmarkStart":
				if name := attrValue(t, "name"); name != "" {
					body.bookmarks[name] = true
				}
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				body.paragraphs++
				if docxHeadingLevel(paragraphStyle) > 0 {
					body.headings++
				}
			}
		}
	}
	return body, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Title" → 1, "Subtitle" → 2.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	if rest, ok := strings.CutPrefix(lower, "heading"); ok {
		if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '9' {
			return int(rest[0] - '0')
		}
	}
	return 0
}

type docxRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

func readDocxRels(f *zip.File) (map[string]docxRelationship, error) {
	var doc struct {
		Relationships []docxRelationship `xml:"Relationship"`
	}
	if err := decodeZipXML(f, &doc); err != nil {
		return nil, err
	}
	rels := make(map[string]docxRelationship, len(doc.Relationships))
	for _, r := range doc.Relationships {
		rels[r.ID] = r
	}
	return rels, nil
}

// docxBrokenRefs returns relationship ids used by the body but not declared,
// internal relationship targets missing from the archive, and hyperlink
// anchors without a matching bookmark.
func docxBrokenRefs(body *docxBody, rels map[string]docxRelationship, parts map[string]*zip.File) []string {
	var broken []string
	for _, id := range body.relIDs {
		if _, ok := rels[id]; !ok {
			broken = append(broken, "undeclared relationship "+id)
		}
	}

	ids := make([]string, 0, len(rels))
	for id := range rels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rel := rels[id]
		if strings.EqualFold(rel.TargetMode, "External") || rel.Target == "" {
			continue
		}
		target := resolveDocxTarget(rel.Target)
		if _, ok := parts[target]; !ok {
			broken = append(broken, fmt.Sprintf("relationship %s targets missing part %s", id, target))
		}
	}

	for _, a := range body.anchors {
		if !body.bookmarks[a] {
			broken = append(broken, "hyperlink anchor #"+a+" has no bookmark")
		}
	}
	return broken
}

// resolveDocxTarget resolves a relationship target relative to word/.
func resolveDocxTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join("word", target)
}

func readDocxCore(f *zip.File) (Metadata, error) {
	var core struct {
		Title       string `xml:"title"`
		Subject     string `xml:"subject"`
		Description string `xml:"description"`
		Keywords    string `xml:"keywords"`
	}
	if err := decodeZipXML(f, &core); err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Title:    strings.TrimSpace(core.Title),
		Subject:  strings.TrimSpace(core.Subject),
		Comments: strings.TrimSpace(core.Description),
		Keywords: strings.TrimSpace(core.Keywords),
	}, nil
}

func decodeZipXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", f.Name, err)
	}
	return nil
}

func attrValue(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func attrValueNS(t xml.StartElement, space, local string) string {
	for _, a := range t.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
