// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pandoc

import (
	"path/filepath"

	"github.com/pdiddy/docconvert/pkg/types"
)

// BuildArgs returns the pandoc flags for one conversion: the general pandoc
// options, then the route's extra arguments, then a metadata flag recording
// the source filename when provenance stamping is enabled.
func BuildArgs(cfg types.ConversionConfig, from, to types.Format, source string) []string {
	opts := cfg.Pandoc
	var args []string
	if opts.Wrap != "" {
		args = append(args, "--wrap="+opts.Wrap)
	}
	if opts.Standalone {
		args = append(args, "--standalone")
	}
	if opts.MarkdownHeadings != "" {
		args = append(args, "--markdown-headings="+opts.MarkdownHeadings)
	}
	if opts.ReferenceLinks {
		args = append(args, "--reference-links")
	}
	for _, p := range opts.ResourcePath {
		args = append(args, "--resource-path="+p)
	}

	args = append(args, cfg.RouteArgs(from, to)...)

	if key := provenanceKey(to); cfg.StampProvenance && source != "" && key != "" {
		args = append(args, "--metadata="+key+":Converted from "+filepath.Base(source))
	}
	return args
}

// provenanceKey returns the metadata field pandoc writes into the document
// properties of to. Markdown outputs get YAML frontmatter instead.
func provenanceKey(to types.Format) string {
	switch to {
	case types.FormatDocx, types.FormatPDF:
		return "subject"
	case types.FormatHTML:
		return "description"
	}
	return ""
}
