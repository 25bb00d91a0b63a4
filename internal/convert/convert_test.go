// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docconvert/internal/validate"
	"github.com/pdiddy/docconvert/pkg/types"
)

func TestConvert_SuccessWithinThresholds(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	dst := filepath.Join(dir, "out", "notes.docx")

	eng := &fakeEngine{outputs: []string{strings.Repeat("x", 400)}}
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: 1500 * time.Millisecond}
	o, sleeps := newOrchestrator(testConfig(), eng, WithClock(clock.now))
	tracker := newTracker()

	out := o.Convert(context.Background(), src, dst, tracker)

	require.True(t, out.Succeeded(), "error: %s", out.Error)
	assert.Equal(t, dst, out.OutputPath)
	assert.Empty(t, out.Error)
	assert.NoError(t, out.Err)
	assert.Equal(t, types.ConversionDetails{
		SourceFormat:   types.FormatMarkdown,
		TargetFormat:   types.FormatDocx,
		ConversionTime: 1500 * time.Millisecond,
		OutputSize:     400,
		InputSize:      500,
	}, *out.Details)

	assert.Equal(t, 1, eng.calls)
	assert.Empty(t, sleeps.delays)
	assert.Equal(t, 1, tracker.Successful)
	assert.Zero(t, tracker.Failed)
	assert.Empty(t, tracker.Errors)
	assert.Equal(t, 1500*time.Millisecond, tracker.Times["notes.md"].Duration())
	assert.InDelta(t, 0.8, tracker.Sizes["notes.md"].Ratio, 1e-9)
}

func TestConvert_UndersizedOutputExhaustsRetries(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	dst := filepath.Join(dir, "notes.docx")

	cfg := testConfig()
	cfg.Retry.MaxConversionRetries = 2
	eng := &fakeEngine{outputs: []string{strings.Repeat("x", 10)}}
	o, sleeps := newOrchestrator(cfg, eng)
	tracker := newTracker()

	out := o.Convert(context.Background(), src, dst, tracker)

	require.False(t, out.Succeeded())
	assert.Nil(t, out.Details)
	assert.Contains(t, out.Error, "is less than 50% of the original file size")
	assert.Contains(t, out.Error, "ratio: 0.02")
	assert.ErrorIs(t, out.Err, ErrValidation)

	assert.Equal(t, 2, eng.calls)
	assert.Equal(t, []time.Duration{time.Second}, sleeps.delays)
	assert.Equal(t, 1, tracker.Failed)
	assert.Zero(t, tracker.Successful)
	assert.Contains(t, tracker.Errors[src], "Conversion error")
}

func TestConvert_MissingInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "absent.md")

	eng := &fakeEngine{outputs: []string{"unused"}}
	o, sleeps := newOrchestrator(testConfig(), eng)
	tracker := newTracker()

	out := o.Convert(context.Background(), src, filepath.Join(dir, "absent.docx"), tracker)

	require.False(t, out.Succeeded())
	assert.Contains(t, out.Error, src)
	assert.ErrorIs(t, out.Err, ErrMissingInput)
	assert.Zero(t, eng.calls)
	assert.Empty(t, sleeps.delays)
	assert.Equal(t, 1, tracker.Failed)
	assert.Equal(t, "Input file not found: "+src, tracker.Errors[src])
}

func TestConvert_RecoversAfterEngineFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)

	eng := &fakeEngine{
		errs:    []error{errors.New("pandoc died")},
		outputs: []string{strings.Repeat("x", 400)},
	}
	o, sleeps := newOrchestrator(testConfig(), eng)
	tracker := newTracker()

	out := o.Convert(context.Background(), src, filepath.Join(dir, "notes.docx"), tracker)

	require.True(t, out.Succeeded(), "error: %s", out.Error)
	assert.Equal(t, 2, eng.calls)
	assert.Equal(t, []time.Duration{time.Second}, sleeps.delays)
	assert.Equal(t, 1, tracker.Successful)
	assert.Zero(t, tracker.Failed)
	assert.Empty(t, tracker.Errors)
}

func TestConvert_AttemptBound(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(strings.Repeat("I", n), func(t *testing.T) {
			dir := t.TempDir()
			src := writeSource(t, dir, "notes.md", 500)

			cfg := testConfig()
			cfg.Retry.MaxConversionRetries = n
			cfg.Retry.ConversionRetryDelay = 250 * time.Millisecond
			errs := make([]error, 10)
			for i := range errs {
				errs[i] = errors.New("exit status 1")
			}
			eng := &fakeEngine{errs: errs}
			o, sleeps := newOrchestrator(cfg, eng)
			tracker := newTracker()

			out := o.Convert(context.Background(), src, filepath.Join(dir, "notes.docx"), tracker)

			require.False(t, out.Succeeded())
			assert.ErrorIs(t, out.Err, ErrConversionEngine)
			assert.Equal(t, "Integration error: Fake conversion failed: exit status 1", out.Error)
			assert.Equal(t, n, eng.calls)
			require.Len(t, sleeps.delays, n-1)
			for _, d := range sleeps.delays {
				assert.Equal(t, 250*time.Millisecond, d)
			}
			assert.Equal(t, 1, tracker.Failed)
			assert.Len(t, tracker.Errors, 1)
		})
	}
}

func TestConvert_CounterExclusivity(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.md", 500)
	empty := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(empty, []byte("  \n\t\n"), 0o644))

	tests := []struct {
		name        string
		src         string
		eng         *fakeEngine
		wantSuccess bool
	}{
		{name: "success", src: good, eng: &fakeEngine{outputs: []string{strings.Repeat("x", 400)}}, wantSuccess: true},
		{name: "validation failure", src: good, eng: &fakeEngine{outputs: []string{"tiny"}}},
		{name: "engine failure", src: good, eng: &fakeEngine{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}},
		{name: "input failure", src: empty, eng: &fakeEngine{}},
		{name: "panic", src: good, eng: &fakeEngine{panics: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			o, _ := newOrchestrator(testConfig(), tt.eng)
			out := o.Convert(context.Background(), tt.src, filepath.Join(t.TempDir(), "out.docx"), rec)

			assert.Equal(t, tt.wantSuccess, out.Succeeded())
			assert.Equal(t, 1, rec.successes+rec.failures)
			if tt.wantSuccess {
				assert.Equal(t, 1, rec.successes)
			} else {
				assert.Equal(t, 1, rec.failures)
			}
		})
	}
}

func TestConvert_RepeatFailureOverwritesError(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	tracker := newTracker()

	cfg := testConfig()
	cfg.Retry.MaxConversionRetries = 1
	first, _ := newOrchestrator(cfg, &fakeEngine{errs: []error{errors.New("first")}})
	second, _ := newOrchestrator(cfg, &fakeEngine{errs: []error{errors.New("second")}})

	first.Convert(context.Background(), src, filepath.Join(dir, "a.docx"), tracker)
	second.Convert(context.Background(), src, filepath.Join(dir, "a.docx"), tracker)

	assert.Equal(t, 2, tracker.Failed)
	require.Len(t, tracker.Errors, 1)
	assert.Contains(t, tracker.Errors[src], "second")
}

func TestConvert_InputErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	tests := []struct {
		name     string
		src      string
		dst      string
		mutate   func(*types.ConversionConfig)
		wantErr  error
		wantText string
	}{
		{
			name:     "whitespace only",
			src:      write("blank.md", []byte("\n   \n")),
			dst:      "blank.docx",
			wantErr:  ErrEmptyInput,
			wantText: "Markdown file is empty",
		},
		{
			name:    "invalid utf-8",
			src:     write("binary.md", []byte{0xff, 0xfe, 0x00, 'a'}),
			dst:     "binary.docx",
			wantErr: ErrUnreadableInput,
		},
		{
			name:    "unknown encoding",
			src:     write("enc.md", []byte("# ok\n")),
			dst:     "enc.docx",
			mutate:  func(c *types.ConversionConfig) { c.InputEncoding = "no-such-charset" },
			wantErr: ErrUnreadableInput,
		},
		{
			name:     "unsupported extension",
			src:      write("notes.rtf", []byte("{\\rtf1}")),
			dst:      "notes.docx",
			wantErr:  ErrUnreadableInput,
			wantText: "unsupported file extension",
		},
		{
			name: "html without body",
			src:  write("frag.html", []byte("<p>fragment</p>")),
			dst:  "frag.md",
			mutate: func(c *types.ConversionConfig) {
				c.Validation.VerifyStructure = true
			},
			wantErr:  ErrUnreadableInput,
			wantText: "Invalid HTML structure in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			eng := &fakeEngine{outputs: []string{strings.Repeat("x", 400)}}
			o, sleeps := newOrchestrator(cfg, eng)
			tracker := newTracker()

			out := o.Convert(context.Background(), tt.src, filepath.Join(dir, tt.dst), tracker)

			require.False(t, out.Succeeded())
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.False(t, Retryable(out.Err))
			if tt.wantText != "" {
				assert.Contains(t, out.Error, tt.wantText)
			}
			assert.Zero(t, eng.calls)
			assert.Empty(t, sleeps.delays)
			assert.Equal(t, 1, tracker.Failed)
		})
	}
}

func TestConvert_PanicBecomesFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	tracker := newTracker()

	eng := &fakeEngine{panics: 3}
	o, sleeps := newOrchestrator(testConfig(), eng)
	var out Outcome
	require.NotPanics(t, func() {
		out = o.Convert(context.Background(), src, filepath.Join(dir, "notes.docx"), tracker)
	})

	require.False(t, out.Succeeded())
	assert.ErrorIs(t, out.Err, ErrUnexpected)
	assert.Equal(t, "Failed to convert Markdown to DOCX: engine exploded", out.Error)
	// Every attempt panicked; each one counted against the budget.
	assert.Equal(t, 3, eng.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps.delays)
	assert.Equal(t, 1, tracker.Failed)
	assert.Zero(t, tracker.Successful)
	assert.Equal(t, "engine exploded", tracker.Errors[src])
}

func TestConvert_PanicThenSuccess(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	tracker := newTracker()

	eng := &fakeEngine{panics: 1, outputs: []string{strings.Repeat("x", 400)}}
	o, sleeps := newOrchestrator(testConfig(), eng)
	out := o.Convert(context.Background(), src, filepath.Join(dir, "notes.docx"), tracker)

	require.True(t, out.Succeeded(), "error: %s", out.Error)
	assert.Equal(t, 2, eng.calls)
	assert.Equal(t, []time.Duration{time.Second}, sleeps.delays)
	assert.Equal(t, 1, tracker.Successful)
	assert.Zero(t, tracker.Failed)
	assert.Empty(t, tracker.Errors)
}

func TestConvert_RecorderPanicKeepsSuccess(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	rec := &countingRecorder{panicOnSuccess: true}

	o, _ := newOrchestrator(testConfig(), &fakeEngine{outputs: []string{strings.Repeat("x", 400)}})
	var out Outcome
	require.NotPanics(t, func() {
		out = o.Convert(context.Background(), src, filepath.Join(dir, "notes.docx"), rec)
	})

	assert.True(t, out.Succeeded())
	assert.Equal(t, 1, rec.successes)
	assert.Zero(t, rec.failures)
}

func TestConvert_OutputDirectoryFailureIsRetried(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	eng := &fakeEngine{}
	o, sleeps := newOrchestrator(testConfig(), eng)
	out := o.Convert(context.Background(), src, filepath.Join(blocker, "sub", "notes.docx"), nil)

	require.False(t, out.Succeeded())
	assert.ErrorIs(t, out.Err, ErrOutputDirectory)
	assert.Zero(t, eng.calls)
	assert.Len(t, sleeps.delays, 2)
}

func TestConvert_NilRecorder(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	o, _ := newOrchestrator(testConfig(), &fakeEngine{outputs: []string{strings.Repeat("x", 400)}})

	out := o.Convert(context.Background(), src, filepath.Join(dir, "notes.docx"), nil)
	assert.True(t, out.Succeeded())
}

func TestConvert_EngineJob(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "notes.md", 500)
	dst := filepath.Join(dir, "notes.docx")

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "request-7")

	cfg := testConfig()
	cfg.MarkdownToDocxArgs = []string{"--toc"}
	eng := &fakeEngine{outputs: []string{strings.Repeat("x", 400)}}
	o, _ := newOrchestrator(cfg, eng)

	out := o.Run(ctx, types.ConversionJob{InputPath: src, OutputPath: dst, Args: []string{"--number-sections"}}, nil)
	require.True(t, out.Succeeded(), "error: %s", out.Error)

	require.Len(t, eng.jobs, 1)
	job := eng.jobs[0]
	assert.Equal(t, types.FormatMarkdown, job.From)
	assert.Equal(t, types.FormatDocx, job.To)
	assert.Equal(t, []string{
		"--wrap=none", "--standalone", "--markdown-headings=atx",
		"--toc",
		"--metadata=subject:Converted from notes.md",
		"--number-sections",
	}, job.Args)
	assert.Equal(t, "request-7", eng.ctxs[0].Value(ctxKey{}))
}

func TestConvert_HTMLToMarkdownPostProcessing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(src, []byte(`<html><body><h1>Title</h1><p>Body text here.</p></body></html>`), 0o644))
	dst := filepath.Join(dir, "md", "page.md")

	cfg := testConfig()
	cfg.Validation = types.ValidationConfig{ConversionRatioThreshold: 0.1, VerifyStructure: true}
	cfg.AddFrontmatter = true
	raw := "::: section\n# Title {#title}\n\n\n\nBody text here.<!-- generated -->\n\n- one\n- two\n:::\n"
	eng := &fakeEngine{outputs: []string{raw}}
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
	o, _ := newOrchestrator(cfg, eng, WithClock(clock.now))

	out := o.Convert(context.Background(), src, dst, nil)
	require.True(t, out.Succeeded(), "error: %s", out.Error)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	want := "---\nsource: page.html\nconverted_at: \"2026-03-01T12:00:02Z\"\n---\n\n# Title \n\nBody text here.\n- one\n- two\n"
	assert.Equal(t, want, string(got))

	md, err := validate.MarkdownReader{}.Metadata(dst)
	require.NoError(t, err)
	assert.True(t, md.References("page.html"))
}

func TestAddFrontmatter(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const stamp = "source: page.html\nconverted_at: \"2026-03-01T12:00:00Z\"\n"

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no frontmatter",
			body: "\n# Title\n",
			want: "---\n" + stamp + "---\n\n# Title\n",
		},
		{
			name: "standalone title block",
			body: "---\ntitle: Page Title\n---\n\n# Title\n",
			want: "---\ntitle: Page Title\n" + stamp + "---\n\n# Title\n",
		},
		{
			name: "existing source kept",
			body: "---\nsource: other.html\n---\nBody\n",
			want: "---\nsource: other.html\nconverted_at: \"2026-03-01T12:00:00Z\"\n---\nBody\n",
		},
		{
			name: "empty block",
			body: "---\n---\nBody\n",
			want: "---\n" + stamp + "---\nBody\n",
		},
		{
			name: "dots terminator",
			body: "---\ntitle: T\n...\nBody\n",
			want: "---\ntitle: T\n" + stamp + "---\nBody\n",
		},
		{
			name: "thematic break gets a new block",
			body: "---\njust text\n---\nBody\n",
			want: "---\n" + stamp + "---\n\n---\njust text\n---\nBody\n",
		},
		{
			name: "unparsable block gets a new block",
			body: "---\na: [b\n---\nBody\n",
			want: "---\n" + stamp + "---\n\n---\na: [b\n---\nBody\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := addFrontmatter("/site/page.html", tt.body, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_HTMLToMarkdownKeepsTitleBlock(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(src, []byte(`<html><head><title>Page Title</title></head><body><h1>Title</h1><p>Body text here.</p></body></html>`), 0o644))
	dst := filepath.Join(dir, "page.md")

	cfg := testConfig()
	cfg.Validation = types.ValidationConfig{ConversionRatioThreshold: 0.1}
	cfg.AddFrontmatter = true
	eng := &fakeEngine{outputs: []string{"---\ntitle: Page Title\n---\n\n# Title\n\nBody text here.\n"}}
	o, _ := newOrchestrator(cfg, eng)

	out := o.Convert(context.Background(), src, dst, nil)
	require.True(t, out.Succeeded(), "error: %s", out.Error)

	md, err := validate.MarkdownReader{}.Metadata(dst)
	require.NoError(t, err)
	assert.Equal(t, "Page Title", md.Title)
	assert.True(t, md.References("page.html"))
}

func TestNew_DefaultValidatorUsesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.CheckLinks = true
	o := New(cfg, &fakeEngine{})
	assert.Equal(t, cfg.Validation, o.validator.Policy())
	assert.Equal(t, cfg, o.Config())
}
