// internal/cli/output.go
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"futures-desk/internal/domain"
	"futures-desk/internal/util"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The ledger rejected the operation
	ExitCommandError = 2 // Bad flags, unreachable storage, failed startup
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ledgerError assigns an exit code to a ledger error: rejections are
// failures, everything else is a command error.
func ledgerError(message string, err error) error {
	if util.IsDomainError(err) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// render writes data as indented JSON, or hands the writer to text.
func render(w io.Writer, opts *RootOptions, data interface{}, text func(io.Writer) error) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return text(w)
}

func writeAccount(w io.Writer, a *domain.Account) error {
	_, err := fmt.Fprintf(w, "%s\tbalance %d\n", a.Key, a.Balance)
	return err
}

func writePredictions(w io.Writer, predictions []domain.Prediction) error {
	if len(predictions) == 0 {
		_, err := fmt.Fprintln(w, "No predictions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCOUNT\tWAGER\tCONFIDENCE\tDEADLINE\tSTATUS\tOUTCOME\tCLAIM")
	for _, p := range predictions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d%%\t%s\t%s\t%s\t%s\n",
			p.ID, p.AccountKey, p.Wager, p.Confidence, p.Deadline.Format(domain.DateLayout), p.Status, p.Outcome, p.Claim)
	}
	return tw.Flush()
}

func writePrediction(w io.Writer, p *domain.Prediction) error {
	return writePredictions(w, []domain.Prediction{*p})
}
