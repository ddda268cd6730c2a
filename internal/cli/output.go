package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and was refused or incomplete
	ExitCommandError = 2 // bad flags, bad config, database unavailable
)

// Error codes reported for failures that carry no domain code.
const (
	ErrCodeGeneric     = "ERROR"
	ErrCodeRemote      = "REMOTE"
	ErrCodeUnreachable = "REMOTE_UNREACHABLE"
	ErrCodeSync        = "SYNC_INCOMPLETE"
	ErrCodeScenario    = "SCENARIO_FAILED"
)

// ExitError carries the process exit code for a failed command.
// Reported is set once the error went out through an OutputFormatter so
// main does not print it a second time.
type ExitError struct {
	Code     int
	Message  string
	Err      error
	Reported bool
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to an exit code. Errors that are not ExitErrors
// come from cobra flag and argument parsing and map to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// IsReported reports whether err was already written to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// OutputFormatter writes command results as JSON lines or text.
// Diagnostics go to ErrWriter so they never mix with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is one JSON line of command output. Status is "ok" or
// "error".
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError carries a pos error code (STOCK_INSUFFICIENT, ...) or one of
// the ErrCode constants above.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// textRenderer is implemented by payloads with a human-readable form.
type textRenderer interface {
	RenderText(w io.Writer)
}

// Success writes data. In text mode payloads implementing textRenderer
// render themselves; anything else is printed with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if r, ok := data.(textRenderer); ok {
		r.RenderText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns it as a reported ExitError. Domain and
// remote failures exit with ExitFailure, anything else with
// ExitCommandError.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, details := describeError(err)
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), details)

	exit := ExitCommandError
	if code != ErrCodeGeneric && code != string(pos.ErrCodeStorage) {
		exit = ExitFailure
	}
	e := WrapExitError(exit, message, err)
	e.Reported = true
	return e
}

// describeError picks the error code and structured details for err.
func describeError(err error) (string, any) {
	if code := pos.CodeOf(err); code != "" {
		if shortages := pos.ShortagesOf(err); len(shortages) > 0 {
			return string(code), shortages
		}
		return string(code), nil
	}
	var rejected *remote.RemoteRejectedError
	switch {
	case errors.As(err, &rejected):
		return ErrCodeRemote, map[string]any{"status": rejected.StatusCode, "message": rejected.Message}
	case remote.IsUnreachable(err):
		return ErrCodeUnreachable, nil
	case remote.IsRetryable(err):
		return ErrCodeRemote, nil
	}
	return ErrCodeGeneric, nil
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
