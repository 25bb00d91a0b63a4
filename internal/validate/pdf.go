// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/docconvert/pkg/types"
)

// pdfcpu would otherwise install a config directory under the user's home
// on first use.
func init() {
	api.DisableConfigDir()
}

// PDFReader opens PDF documents with pdfcpu.
type PDFReader struct{}

// Open reads and validates the PDF at path.
func (PDFReader) Open(path string) (*Document, error) {
	ctx, err := readPDF(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Format: types.FormatPDF,
		Blocks: ctx.PageCount,
		Metadata: Metadata{
			Title:   strings.TrimSpace(ctx.Title),
			Subject: strings.TrimSpace(ctx.Subject),
		},
	}
	if ctx.PageCount == 0 {
		doc.Problems = append(doc.Problems, "PDF document has no pages")
	}
	return doc, nil
}

// Metadata returns the title and subject of the PDF info dictionary.
func (r PDFReader) Metadata(path string) (Metadata, error) {
	doc, err := r.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	return doc.Metadata, nil
}

func readPDF(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}
