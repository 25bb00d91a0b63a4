// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package htmlmd converts HTML to Markdown in-process. It serves the
// html-to-markdown route when pandoc is unavailable.
package htmlmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/pdiddy/docconvert/pkg/types"
)

// Engine converts HTML sources to Markdown. It ignores job.Args, which carry
// pandoc flags.
type Engine struct {
	policy   *bluemonday.Policy
	md       *converter.Converter
	encoding string
}

// New returns an Engine that decodes sources with the named encoding. An
// empty name means UTF-8.
func New(encoding string) *Engine {
	policy := bluemonday.UGCPolicy()
	// Keep anchors so fragment links survive sanitising.
	policy.AllowAttrs("id", "name").Globally()

	return &Engine{
		policy: policy,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		encoding: encoding,
	}
}

// Name returns "native".
func (e *Engine) Name() string { return string(types.BackendNative) }

// Convert writes the Markdown rendering of job.InputPath to job.OutputPath.
func (e *Engine) Convert(ctx context.Context, job types.ConversionJob) error {
	if job.From != types.FormatHTML || job.To != types.FormatMarkdown {
		return fmt.Errorf("unsupported route %s to %s (native engine converts html to markdown only)", job.From, job.To)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := os.ReadFile(job.InputPath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	src, err := e.decode(raw)
	if err != nil {
		return err
	}

	out, err := e.Markdown(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(job.OutputPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// Markdown sanitises the body of src and renders it as Markdown.
func (e *Engine) Markdown(src string) (string, error) {
	body, err := bodyHTML(src)
	if err != nil {
		return "", err
	}
	clean := e.policy.Sanitize(body)

	out, err := e.md.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("html to markdown: %w", err)
	}
	return strings.TrimSpace(out) + "\n", nil
}

// bodyHTML renders the children of the document body, dropping the head so
// its title and scripts never reach the output.
func bodyHTML(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	body := findBody(doc)
	if body == nil {
		return src, nil
	}
	var b bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("rendering html: %w", err)
		}
	}
	return b.String(), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func (e *Engine) decode(raw []byte) (string, error) {
	name := strings.ToLower(strings.TrimSpace(e.encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return string(raw), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unknown encoding %q: %w", e.encoding, err)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", e.encoding, err)
	}
	return string(out), nil
}
