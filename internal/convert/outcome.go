// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"

	"github.com/pdiddy/docconvert/pkg/types"
)

// Outcome is the result of one Convert call. A successful outcome carries
// OutputPath and Details; a failed one carries Error and Err.
type Outcome struct {
	OutputPath string
	Details    *types.ConversionDetails

	// Error is the human-readable failure message.
	Error string
	// Err is the typed error behind Error, for errors.Is and errors.As.
	Err error
}

// Succeeded reports whether the conversion produced a validated output.
func (o Outcome) Succeeded() bool {
	return o.Details != nil
}

func successOutcome(path string, d types.ConversionDetails) Outcome {
	return Outcome{OutputPath: path, Details: &d}
}

func failureOutcome(err error, job types.ConversionJob) Outcome {
	return Outcome{Error: failureMessage(err, job), Err: err}
}

// failureMessage formats err for callers. Errors from the taxonomy are
// reported as integration errors; anything else names the route.
func failureMessage(err error, job types.ConversionJob) string {
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) {
		return fmt.Sprintf("Failed to convert %s to %s: %v",
			titleFormat(string(job.From)), titleFormat(string(job.To)), err)
	}
	return "Integration error: " + err.Error()
}
