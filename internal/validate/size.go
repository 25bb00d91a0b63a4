// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// CheckFileSize reports a problem when size is below min.
func CheckFileSize(size, min int64) []string {
	if size >= min {
		return nil
	}
	return []string{fmt.Sprintf(
		"Converted file size (%s) is below the minimum threshold (%s)",
		humanSize(size), humanSize(min),
	)}
}

// Ratio returns output/input, treating inputs smaller than one byte as one
// byte so an empty source never divides by zero.
func Ratio(outputSize, inputSize int64) float64 {
	return float64(outputSize) / float64(max(inputSize, 1))
}

// CheckConversionRatio reports a problem when the output is smaller than
// threshold times the input. An empty output is always flagged for any
// positive threshold.
func CheckConversionRatio(outputSize, inputSize int64, threshold float64) []string {
	ratio := Ratio(outputSize, inputSize)
	if ratio >= threshold {
		return nil
	}
	return []string{fmt.Sprintf(
		"Conversion error: Converted file size (%s) is less than %.0f%% of the original file size (%s) (ratio: %.2f).",
		humanSize(outputSize), threshold*100, humanSize(inputSize), ratio,
	)}
}

func humanSize(n int64) string {
	return humanize.Bytes(uint64(max(n, 0)))
}
