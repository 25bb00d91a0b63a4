// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Report is a point-in-time copy of a Tracker, shaped for export.
type Report struct {
	Successful int            `json:"successful_conversions" yaml:"successful_conversions"`
	Failed     int            `json:"failed_conversions" yaml:"failed_conversions"`
	Errors     []ReportError  `json:"errors,omitempty" yaml:"errors,omitempty"`
	Files      []ReportSample `json:"files,omitempty" yaml:"files,omitempty"`
}

// ReportError is one failed source and its last message.
type ReportError struct {
	Source  string `json:"source" yaml:"source"`
	Message string `json:"message" yaml:"message"`
}

// ReportSample combines the timing and size samples for one file.
type ReportSample struct {
	File      string  `json:"file" yaml:"file"`
	Seconds   float64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Original  int64   `json:"original_size,omitempty" yaml:"original_size,omitempty"`
	Converted int64   `json:"converted_size,omitempty" yaml:"converted_size,omitempty"`
	Ratio     float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`
}

// Report copies the tracker's counters and samples, sorted by key.
func (t *Tracker) Report() Report {
	if t == nil {
		return Report{}
	}
	r := Report{Successful: t.Successful, Failed: t.Failed}

	for _, src := range sortedKeys(t.Errors) {
		r.Errors = append(r.Errors, ReportError{Source: src, Message: t.Errors[src]})
	}

	files := make(map[string]struct{}, len(t.Times)+len(t.Sizes))
	for f := range t.Times {
		files[f] = struct{}{}
	}
	for f := range t.Sizes {
		files[f] = struct{}{}
	}
	for _, f := range sortedKeys(files) {
		s := ReportSample{File: f}
		if tm, ok := t.Times[f]; ok {
			s.Seconds = tm.Duration().Seconds()
		}
		if sz, ok := t.Sizes[f]; ok {
			s.Original, s.Converted, s.Ratio = sz.Original, sz.Converted, sz.Ratio
		}
		r.Files = append(r.Files, s)
	}
	return r
}

// WriteReport writes r to path as JSON when the extension is .json and as
// YAML otherwise.
func WriteReport(path string, r Report) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(r, "", "  ")
	default:
		data, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("marshaling metrics report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
