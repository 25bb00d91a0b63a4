// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the configuration and record types shared by the
// conversion stages, the engines, and the CLI.
package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a document markup format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatDocx     Format = "docx"
	FormatPDF      Format = "pdf"
	FormatPlain    Format = "plain"
)

// Extension returns the file extension (with dot) used for outputs of f.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	case FormatDocx:
		return ".docx"
	case FormatPDF:
		return ".pdf"
	case FormatPlain:
		return ".txt"
	}
	return "." + string(f)
}

// FormatFromPath maps a file extension to its Format.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "docx", "doc":
		return FormatDocx, nil
	case "pdf":
		return FormatPDF, nil
	case "txt":
		return FormatPlain, nil
	}
	return "", fmt.Errorf("unsupported file extension %q: %s", ext, path)
}

// ParseFormat accepts a format name or one of its common extensions.
func ParseFormat(name string) (Format, error) {
	name = strings.TrimPrefix(strings.ToLower(name), ".")
	if name == string(FormatPlain) {
		return FormatPlain, nil
	}
	return FormatFromPath("x." + name)
}

// ConversionJob describes one engine invocation.
type ConversionJob struct {
	InputPath  string
	OutputPath string
	From       Format
	To         Format

	// Args are passed to the engine verbatim after its own routing flags.
	Args []string
}

// ConversionDetails describes a successful conversion. It is created once,
// on the attempt that passed validation.
type ConversionDetails struct {
	SourceFormat   Format        `json:"source_format" yaml:"source_format"`
	TargetFormat   Format        `json:"target_format" yaml:"target_format"`
	ConversionTime time.Duration `json:"conversion_time" yaml:"conversion_time"`
	OutputSize     int64         `json:"output_size" yaml:"output_size"`
	InputSize      int64         `json:"input_size" yaml:"input_size"`
}
