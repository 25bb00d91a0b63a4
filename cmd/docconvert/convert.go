package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docconvert/internal/convert"
	"github.com/pdiddy/docconvert/internal/metrics"
	"github.com/pdiddy/docconvert/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert documents to another format",
	Long: `Convert runs each input through the configured engine, retrying failed
attempts and validating every output. With --output a single file is written
to that path; otherwise outputs go to --output-dir named <stem>.<ext>.

With --batch DIR every file of the --from format under DIR is converted.
Existing outputs are skipped unless --force is given.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("to", "docx", "target format: markdown, html, docx, or pdf")
	convertCmd.Flags().String("from", "", "source format for --batch (default: html when --to is markdown, otherwise markdown)")
	convertCmd.Flags().StringP("output", "o", "", "output path for a single input file")
	convertCmd.Flags().String("output-dir", "", "directory for converted files (default: conversion.output_dir)")
	convertCmd.Flags().String("batch", "", "convert every matching file in this directory")
	convertCmd.Flags().Bool("recursive", false, "descend into subdirectories with --batch")
	convertCmd.Flags().Bool("force", false, "overwrite existing outputs")
	convertCmd.Flags().String("report", "", "write a metrics report to this path (.json or .yaml)")
	convertCmd.Flags().String("backend", "", "engine backend: pandoc, container, or native")
	convertCmd.Flags().Int("retries", 0, "maximum attempts per file (default: conversion.retry_mechanism.max_conversion_retries)")
	convertCmd.Flags().Duration("retry-delay", 0, "pause between attempts")
	convertCmd.Flags().String("encoding", "", "text encoding of the source files")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyConvertFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	toName, _ := cmd.Flags().GetString("to")
	to, err := types.ParseFormat(toName)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	batchDir, _ := cmd.Flags().GetString("batch")
	switch {
	case batchDir == "" && len(args) == 0:
		return errors.New("no input files (pass files or --batch DIR)")
	case output != "" && (batchDir != "" || len(args) != 1):
		return errors.New("--output takes exactly one input file")
	}

	inputs := args
	if batchDir != "" {
		from, err := batchSourceFormat(cmd, to)
		if err != nil {
			return err
		}
		recursive, _ := cmd.Flags().GetBool("recursive")
		found, err := convert.Discover(batchDir, from, recursive)
		if err != nil {
			return err
		}
		inputs = append(inputs, found...)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	engine, desc, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("using conversion engine", "engine", desc)

	o := convert.New(cfg, engine, convert.WithLogger(logger))
	tracker := metrics.NewTracker(logger)

	var failed bool
	if output != "" {
		outcome := o.Convert(ctx, inputs[0], output, tracker)
		printOutcome(os.Stdout, inputs[0], outcome)
		failed = !outcome.Succeeded()
	} else {
		outDir, _ := cmd.Flags().GetString("output-dir")
		if outDir == "" {
			outDir = cfg.OutputDir
		}
		force, _ := cmd.Flags().GetBool("force")
		result := convert.Batch(ctx, o, inputs,
			convert.BatchOptions{OutputDir: outDir, To: to, Force: force}, tracker, os.Stdout)
		failed = result.HasFailures()
	}

	if reportPath, _ := cmd.Flags().GetString("report"); reportPath != "" {
		if err := metrics.WriteReport(reportPath, tracker.Report()); err != nil {
			return fmt.Errorf("writing metrics report: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Metrics report written to %s\n", reportPath)
	}

	if failed {
		return fmt.Errorf("%d of %d conversions failed", tracker.Failed, tracker.Total())
	}
	return nil
}

// applyConvertFlags overlays explicitly set flags on cfg.
func applyConvertFlags(cmd *cobra.Command, cfg *types.ConversionConfig) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		v, _ := flags.GetString("backend")
		cfg.Backend = types.EngineBackend(v)
	}
	if flags.Changed("retries") {
		v, _ := flags.GetInt("retries")
		cfg.Retry.MaxConversionRetries = v
	}
	if flags.Changed("retry-delay") {
		v, _ := flags.GetDuration("retry-delay")
		cfg.Retry.ConversionRetryDelay = v
	}
	if flags.Changed("encoding") {
		v, _ := flags.GetString("encoding")
		cfg.InputEncoding = v
	}
}

// batchSourceFormat resolves --from, defaulting to html for Markdown output
// and markdown for every other target.
func batchSourceFormat(cmd *cobra.Command, to types.Format) (types.Format, error) {
	name, _ := cmd.Flags().GetString("from")
	if name == "" {
		if to == types.FormatMarkdown {
			return types.FormatHTML, nil
		}
		return types.FormatMarkdown, nil
	}
	from, err := types.ParseFormat(name)
	if err != nil {
		return "", fmt.Errorf("invalid --from: %w", err)
	}
	return from, nil
}

func printOutcome(w io.Writer, src string, outcome convert.Outcome) {
	name := filepath.Base(src)
	if !outcome.Succeeded() {
		fmt.Fprintf(w, "failed: %s (%s)\n", name, outcome.Error)
		return
	}
	d := outcome.Details
	fmt.Fprintf(w, "converted: %s -> %s (%.2fs, %s -> %s)\n", name, outcome.OutputPath,
		d.ConversionTime.Seconds(),
		humanize.Bytes(uint64(d.InputSize)), humanize.Bytes(uint64(d.OutputSize)))
}
