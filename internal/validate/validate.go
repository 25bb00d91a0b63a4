// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks conversion artifacts before a conversion is
// declared successful.
//
// Output validation collects every problem it finds instead of stopping at
// the first: size, conversion ratio, and (when enabled) document structure
// are all evaluated and reported together. Provenance metadata is inspected
// on a best-effort basis and only ever logged.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docconvert/pkg/types"
)

// ErrNoMetadata is returned by an Inspector that cannot read metadata for a
// format. Provenance checks treat it as "capability absent" and skip silently.
var ErrNoMetadata = errors.New("metadata inspection not available")

// Metadata holds the descriptive properties of a document.
type Metadata struct {
	Title    string
	Subject  string
	Comments string
	Keywords string
}

// References reports whether any metadata field mentions name.
func (m Metadata) References(name string) bool {
	if name == "" {
		return false
	}
	for _, field := range []string{m.Title, m.Subject, m.Comments, m.Keywords} {
		if strings.Contains(field, name) {
			return true
		}
	}
	return false
}

// Document is the structural summary of an opened artifact.
type Document struct {
	Format types.Format

	// Blocks counts paragraphs (docx), pages (pdf), block elements (html),
	// or non-blank lines (markdown).
	Blocks   int
	Headings int

	// Problems are format-specific structural defects.
	Problems []string

	// BrokenRefs lists internal references that do not resolve. EmptyLinks
	// counts hyperlinks without a target. Both only fail validation when
	// link checking is enabled.
	BrokenRefs []string
	EmptyLinks int

	Metadata Metadata
}

// Reader opens an artifact with a format-aware parser.
type Reader interface {
	Open(path string) (*Document, error)
}

// Inspector reads document metadata for provenance checks.
type Inspector interface {
	Metadata(path string) (Metadata, error)
}

// NoopInspector is the Inspector for formats without readable metadata.
type NoopInspector struct{}

// Metadata always returns ErrNoMetadata.
func (NoopInspector) Metadata(string) (Metadata, error) {
	return Metadata{}, ErrNoMetadata
}

// Validator applies a validation policy to conversion outputs.
type Validator struct {
	policy     types.ValidationConfig
	readers    map[types.Format]Reader
	inspectors map[types.Format]Inspector
	logger     *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for advisory findings.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithReader registers (or replaces) the structure reader for a format.
// A nil reader disables structural checks for the format.
func WithReader(f types.Format, r Reader) Option {
	return func(v *Validator) {
		if r == nil {
			delete(v.readers, f)
			return
		}
		v.readers[f] = r
	}
}

// WithInspector registers (or replaces) the metadata inspector for a format.
func WithInspector(f types.Format, i Inspector) Option {
	return func(v *Validator) {
		if i == nil {
			i = NoopInspector{}
		}
		v.inspectors[f] = i
	}
}

// New returns a Validator with readers and inspectors for docx, html,
// markdown, and pdf.
func New(policy types.ValidationConfig, opts ...Option) *Validator {
	docx, html, md, pdf := DocxReader{}, HTMLReader{}, MarkdownReader{}, PDFReader{}
	v := &Validator{
		policy: policy,
		readers: map[types.Format]Reader{
			types.FormatDocx:     docx,
			types.FormatHTML:     html,
			types.FormatMarkdown: md,
			types.FormatPDF:      pdf,
		},
		inspectors: map[types.Format]Inspector{
			types.FormatDocx:     docx,
			types.FormatHTML:     html,
			types.FormatMarkdown: md,
			types.FormatPDF:      pdf,
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Policy returns the validation policy in effect.
func (v *Validator) Policy() types.ValidationConfig {
	return v.policy
}

// Output validates the artifact at outputPath produced from inputPath
// (inputSize bytes) and returns every problem found. An empty result means
// the artifact is valid.
func (v *Validator) Output(outputPath, inputPath string, inputSize int64, format types.Format) []string {
	info, err := os.Stat(outputPath)
	if err != nil || info.IsDir() {
		return []string{"Output file does not exist: " + outputPath}
	}
	size := max(info.Size(), 0)

	var problems []string
	problems = append(problems, CheckFileSize(size, v.policy.MinFileSize)...)
	problems = append(problems, CheckConversionRatio(size, inputSize, v.policy.ConversionRatioThreshold)...)

	if v.policy.VerifyStructure {
		problems = append(problems, v.structure(outputPath, format)...)
		v.provenance(outputPath, inputPath, format)
	}
	return problems
}

func (v *Validator) structure(path string, format types.Format) []string {
	r, ok := v.readers[format]
	if !ok {
		v.logger.Debug("no structure reader for format", "format", format, "path", path)
		return nil
	}

	doc, err := r.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("%s validation error: %v", strings.ToUpper(string(format)), err)}
	}

	problems := append([]string(nil), doc.Problems...)
	if v.policy.CheckLinks {
		if doc.EmptyLinks > 0 {
			problems = append(problems, fmt.Sprintf("Found %d empty links in document", doc.EmptyLinks))
		}
		for _, ref := range doc.BrokenRefs {
			problems = append(problems, "Broken internal reference: "+ref)
		}
	}

	if format == types.FormatMarkdown && doc.Blocks > 0 && doc.Headings == 0 {
		v.logger.Warn("no headers found in converted markdown", "path", path)
	}
	return problems
}

// provenance logs when the artifact's metadata does not name the source file.
// It never fails a conversion.
func (v *Validator) provenance(outputPath, inputPath string, format types.Format) {
	insp, ok := v.inspectors[format]
	if !ok {
		insp = NoopInspector{}
	}

	md, err := insp.Metadata(outputPath)
	if errors.Is(err, ErrNoMetadata) {
		return
	}
	if err != nil {
		v.logger.Debug("could not check document metadata", "path", outputPath, "error", err)
		return
	}

	source := filepath.Base(inputPath)
	if !md.References(source) {
		v.logger.Debug("source file reference missing in document metadata",
			"source", source, "path", outputPath)
	}
}

// CheckHTMLInput validates the structure of HTML source content. It is used
// before converting HTML so malformed sources fail without spending retries.
// A source without a body is reported alone.
func CheckHTMLInput(content []byte, checkLinks bool) []string {
	if !hasBodyTag(content) {
		return []string{"HTML document missing body tag"}
	}
	if !checkLinks {
		return nil
	}
	if doc := inspectHTML(content); doc.EmptyLinks > 0 {
		return []string{fmt.Sprintf("Found %d empty links in document", doc.EmptyLinks)}
	}
	return nil
}
