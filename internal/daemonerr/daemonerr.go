// Package daemonerr defines the error taxonomy returned across the tool
// protocol boundary: { code, message, details? }.
package daemonerr

import "fmt"

// Code enumerates the stable error codes in spec §7.
type Code string

const (
	InvalidInput            Code = "InvalidInput"
	FileNotFound            Code = "FileNotFound"
	FileTooLarge             Code = "FileTooLarge"
	PathTraversal            Code = "PathTraversal"
	OutsideWorkspace         Code = "OutsideWorkspace"
	OfflinePolicyRemote      Code = "OfflinePolicy.RemoteEndpoint"
	OfflinePolicyNoIndex     Code = "OfflinePolicy.NoIndex"
	EngineUnavailable        Code = "EngineUnavailable"
	EngineAuth               Code = "EngineAuth"
	IndexBatchFailed         Code = "IndexBatchFailed"
	Timeout                  Code = "Timeout"
	PlanNotFound              Code = "PlanNotFound"
	SessionNotFound           Code = "SessionNotFound"
	ApprovalStateConflict    Code = "ApprovalStateConflict"
	StepNotReady             Code = "StepNotReady"
	CircuitBreakerOpen        Code = "CircuitBreakerOpen"
	PatternInvalid            Code = "PatternInvalid"
	ConfigInvalid             Code = "ConfigInvalid"
	Internal                  Code = "Internal"
)

// Error is the uniform shape every component operation returns on failure.
type Error struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *Error for the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches a details payload (e.g. per-file batch errors) and
// returns the same Error for chaining.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Wrap converts an arbitrary error into an Internal Error, preserving the
// original stringified cause in Details, unless err is already an *Error.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*Error); ok {
		return de
	}
	return &Error{Code: Internal, Message: "internal error", Details: err.Error()}
}

// FileError is one entry in an aggregate operation's errors[] field.
type FileError struct {
	Path    string `json:"path"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}
