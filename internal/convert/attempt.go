// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docconvert/pkg/types"
)

// attempt runs the engine exactly once for job and post-processes its output.
func (o *Orchestrator) attempt(ctx context.Context, job types.ConversionJob) error {
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return &EngineError{Stage: StageOutputDir, Engine: o.engine.Name(), Source: job.InputPath, Cause: err}
	}

	run := job
	run.Args = append(o.args(o.cfg, job.From, job.To, job.InputPath), job.Args...)
	o.logger.Debug("converting",
		"source", job.InputPath,
		"from", job.From,
		"to", job.To,
		"engine", o.engine.Name(),
		"args", run.Args)

	if err := o.engine.Convert(ctx, run); err != nil {
		return &EngineError{Stage: StageEngine, Engine: o.engine.Name(), Source: job.InputPath, Cause: err}
	}

	if job.To == types.FormatMarkdown && job.From == types.FormatHTML {
		if err := o.finishMarkdown(job); err != nil {
			return &EngineError{Stage: StagePostWrite, Engine: o.engine.Name(), Source: job.InputPath, Cause: err}
		}
	}
	return nil
}

// finishMarkdown cleans engine artifacts out of converted Markdown and, when
// configured, prepends frontmatter naming the source. A missing output is
// left for output validation to report.
func (o *Orchestrator) finishMarkdown(job types.ConversionJob) error {
	data, err := os.ReadFile(job.OutputPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	content := CleanMarkdown(string(data))
	if o.cfg.AddFrontmatter {
		content, err = addFrontmatter(job.InputPath, content, o.now().UTC())
		if err != nil {
			return err
		}
	}
	return os.WriteFile(job.OutputPath, []byte(content), 0o644)
}

// markdownCleanups run in order: attribute blocks, fenced div markers, raw
// div tags, runs of blank lines, comments, and blank lines before list items.
var markdownCleanups = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`\{[^}]*\}`), ""},
	{regexp.MustCompile(`:::+\s*[^\n]*\n`), ""},
	{regexp.MustCompile(`<div[^>]*>|</div>`), ""},
	{regexp.MustCompile(`\n\s*\n\s*\n+`), "\n\n"},
	{regexp.MustCompile(`<!--[^>]*-->`), ""},
	{regexp.MustCompile(`\n\s*\n-`), "\n-"},
}

// CleanMarkdown strips the pandoc-specific markup that plain Markdown
// readers do not understand.
func CleanMarkdown(content string) string {
	for _, c := range markdownCleanups {
		content = c.re.ReplaceAllString(content, c.with)
	}
	return content
}

type frontmatter struct {
	Source      string `yaml:"source"`
	ConvertedAt string `yaml:"converted_at"`
}

// addFrontmatter records the source file and conversion time in a YAML
// block at the top of body. An existing mapping block, such as the title
// block pandoc writes for standalone output, gains the keys it lacks; any
// other leading "---" text gets a new block in front of it.
func addFrontmatter(source, body string, at time.Time) (string, error) {
	fields := [][2]string{
		{"source", filepath.Base(source)},
		{"converted_at", at.Format(time.RFC3339)},
	}

	if head, rest, ok := splitFrontmatter(body); ok {
		if meta, ok := mergeFrontmatter(head, fields); ok {
			return "---\n" + string(meta) + "---\n" + rest, nil
		}
	}

	meta, err := yaml.Marshal(frontmatter{Source: fields[0][1], ConvertedAt: fields[1][1]})
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(meta)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimLeft(body, "\n"))
	return b.String(), nil
}

// splitFrontmatter returns the YAML between the opening "---" line and the
// first closing "---" or "..." line, and the text after the closing line.
func splitFrontmatter(body string) (head, rest string, ok bool) {
	after, found := strings.CutPrefix(body, "---\n")
	if !found {
		return "", "", false
	}
	for _, line := range strings.SplitAfter(after, "\n") {
		if t := strings.TrimRight(line, "\r\n"); t == "---" || t == "..." {
			return head, after[len(head)+len(line):], true
		}
		head += line
	}
	return "", "", false
}

// mergeFrontmatter appends the missing fields to the YAML mapping in head.
// It reports false when head is not a mapping.
func mergeFrontmatter(head string, fields [][2]string) ([]byte, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(head), &doc); err != nil {
		return nil, false
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, false
	}

	for _, f := range fields {
		if mappingHasKey(m, f[0]) {
			continue
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f[0]},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f[1]})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, false
	}
	if err := enc.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func mappingHasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}
