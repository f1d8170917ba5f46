package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/retroryan/shopledger/internal/result"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected or scenarios failed
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
)

// ExitError carries the process exit code for a failed command. An
// ExitError with neither Message nor Err has already been written to the
// command output and is not printed again.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with a message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	if e, ok := asExitError(err); ok {
		return e.Code
	}
	return ExitFailure
}

// Reported reports whether err has already been written to the output.
func Reported(err error) bool {
	e, ok := asExitError(err)
	return ok && e.Message == "" && e.Err == nil
}

func asExitError(err error) (*ExitError, bool) {
	var e *ExitError
	ok := errors.As(err, &e)
	return e, ok
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope for commands that do not return an
// engine result (the scenario runner).
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // e.g. "E_TEST_FAILED"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Result renders an engine result. JSON mode writes the result as-is; text
// mode writes the payload as YAML, or the error with its details. A failed
// result is returned as an already-reported ExitError.
func (f *OutputFormatter) Result(res result.Result) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if err := f.resultText(res); err != nil {
		return err
	}

	if !res.Succeeded() {
		return &ExitError{Code: ExitFailure}
	}
	return nil
}

func (f *OutputFormatter) resultText(res result.Result) error {
	if !res.Succeeded() {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", res.Code, res.Error)
		keys := make([]string, 0, len(res.Details))
		for k := range res.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(f.Writer, "  %s: %v\n", k, res.Details[k])
		}
		if res.Retryable {
			fmt.Fprintln(f.Writer, "  (retryable)")
		}
		return nil
	}
	return f.Success(res.Data)
}

// Success outputs a successful payload in the configured format. Text mode
// renders the payload's JSON view as YAML so field names match the JSON
// output.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var view any
	if err := dec.Decode(&view); err != nil {
		return fmt.Errorf("unmarshal output: %w", err)
	}
	enc := yaml.NewEncoder(f.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(yamlView(view)); err != nil {
		return fmt.Errorf("render output: %w", err)
	}
	return enc.Close()
}

// yamlView replaces JSON numbers with plain YAML scalars carrying the
// original text, so amounts keep their two decimals.
func yamlView(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = yamlView(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = yamlView(child)
		}
		return val
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(string(val), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(val)}
	}
	return v
}

// VerboseLog writes a progress note to ErrWriter (or Writer when unset),
// keeping stdout clean for JSON. It is silent unless Verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
