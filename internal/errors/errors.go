// Package errors provides standardized error codes for diffcore.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (diff, storage, server, config)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by RPC clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Diff domain - parsing and dictionary errors
	CodeDiffParseFailed       = "diff.parse_failed"        // Structural parse failure
	CodeDiffAmbiguousPaths    = "diff.ambiguous_paths"     // "diff --git" paths cannot be split
	CodeDiffEmpty             = "diff.empty"               // Input contains no diff text
	CodeDiffTooLarge          = "diff.too_large"           // Input exceeds the configured size limit
	CodeDiffInvalidDictionary = "diff.invalid_dictionary"  // Serialized change or hunk is malformed
	CodeDiffEncodingFailed    = "diff.encoding_failed"     // Corpus could not be converted to UTF-8

	// Storage domain - database and persistence errors
	CodeStorageNotFound    = "storage.not_found"    // Diff record not found
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data

	// Server domain - HTTP and WebSocket errors
	CodeServerInvalidMessage = "server.invalid_message" // Malformed or invalid message
	CodeServerRateLimited    = "server.rate_limited"    // Too many parse requests
	CodeServerStoreDisabled  = "server.store_disabled"  // Persistence requested without a store

	// Config domain
	CodeConfigInvalid = "config.invalid" // Configuration value out of range

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "diff.parse_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// ParseFailed creates a "diff.parse_failed" error. The cause usually
// carries the line number and surrounding context.
func ParseFailed(message string, cause error) *CodedError {
	return Wrap(CodeDiffParseFailed, message, cause)
}

// AmbiguousPaths creates a "diff.ambiguous_paths" error for a "diff --git"
// line whose two paths cannot be told apart.
func AmbiguousPaths(line string, cause error) *CodedError {
	msg := fmt.Sprintf("input diff contains ambiguous line %q: it should hold two "+
		"space-separated paths, but there is no way to determine where one path "+
		"ends and the other begins; use default or mnemonic prefixes, or quote the paths", line)
	return Wrap(CodeDiffAmbiguousPaths, msg, cause)
}

// EmptyDiff creates a "diff.empty" error.
func EmptyDiff() *CodedError {
	return New(CodeDiffEmpty, "can't parse an empty diff")
}

// DiffTooLarge creates a "diff.too_large" error.
func DiffTooLarge(size, limit int) *CodedError {
	return New(CodeDiffTooLarge, fmt.Sprintf("diff is %d bytes, limit is %d bytes", size, limit))
}

// InvalidDictionary creates a "diff.invalid_dictionary" error.
func InvalidDictionary(reason string) *CodedError {
	return New(CodeDiffInvalidDictionary, fmt.Sprintf("invalid dictionary: %s", reason))
}

// EncodingFailed creates a "diff.encoding_failed" error.
func EncodingFailed(encoding string, cause error) *CodedError {
	msg := fmt.Sprintf("failed to convert hunk from %s to UTF-8", encoding)
	return Wrap(CodeDiffEncodingFailed, msg, cause)
}

// NotFound creates a "storage.not_found" error.
func NotFound(resource string) *CodedError {
	return New(CodeStorageNotFound, fmt.Sprintf("%s not found", resource))
}

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// RateLimited creates a "server.rate_limited" error.
func RateLimited() *CodedError {
	return New(CodeServerRateLimited, "too many parse requests, slow down")
}

// StoreDisabled creates a "server.store_disabled" error.
func StoreDisabled() *CodedError {
	return New(CodeServerStoreDisabled, "no diff store is configured")
}

// InvalidConfig creates a "config.invalid" error.
func InvalidConfig(field, reason string) *CodedError {
	return New(CodeConfigInvalid, fmt.Sprintf("invalid %s: %s", field, reason))
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
