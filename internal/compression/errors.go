package compression

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies failures that cross the engine boundary.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindPayloadTooLarge ErrorKind = "payload_too_large"
	KindRetrieval       ErrorKind = "retrieval"
	KindTranscode       ErrorKind = "transcode"
	KindDecode          ErrorKind = "decode"
	KindEncrypted       ErrorKind = "encrypted"
	KindInternal        ErrorKind = "internal"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrRetrieval       = &Error{Kind: KindRetrieval}
	ErrTranscode       = &Error{Kind: KindTranscode}
	ErrDecode          = &Error{Kind: KindDecode}
	ErrEncrypted       = &Error{Kind: KindEncrypted}
	ErrInternal        = &Error{Kind: KindInternal}
)

// Error is the structured failure surfaced by the engine.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
	// Timeout marks a transcode that ran out of time.
	Timeout bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel matching e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Message == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// StatusCode maps the error kind to an HTTP status class.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindDecode, KindEncrypted:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRetrieval:
		return http.StatusBadGateway
	case KindTranscode:
		if e.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns text that is safe to show to a client.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		if e.Message != "" {
			return e.Message
		}
		return "invalid request"
	case KindPayloadTooLarge:
		return "file is too large, try a smaller file or a different compression level"
	case KindRetrieval:
		return "could not retrieve uploaded file"
	case KindTranscode:
		if e.Timeout {
			return "compression timed out, try a smaller file or a lower compression level"
		}
		return "compression failed"
	case KindDecode:
		return "the PDF appears to be corrupted or unreadable"
	case KindEncrypted:
		return "encrypted documents are unsupported, remove the password first"
	default:
		return "internal error while compressing the document"
	}
}

// NewValidationError reports client-fixable input problems.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewPayloadTooLargeError reports input above the configured ceiling.
func NewPayloadTooLargeError(size, limit int64) *Error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Message: fmt.Sprintf("%d bytes exceeds limit of %d bytes", size, limit),
	}
}

// NewRetrievalError reports an exhausted remote fetch.
func NewRetrievalError(attempts int, cause error) *Error {
	return &Error{
		Kind:    KindRetrieval,
		Op:      "fetch",
		Message: fmt.Sprintf("exhausted %d attempts", attempts),
		Err:     cause,
	}
}

// NewTranscodeError reports a failed native engine run.
func NewTranscodeError(message string, cause error) *Error {
	return &Error{
		Kind:    KindTranscode,
		Op:      "native",
		Message: message,
		Err:     cause,
		Timeout: isTimeout(cause),
	}
}

// NewDecodeError reports unreadable input.
func NewDecodeError(message string, cause error) *Error {
	return &Error{Kind: KindDecode, Op: "render", Message: message, Err: cause}
}

// NewEncryptedDocumentError reports password-protected input.
func NewEncryptedDocumentError(cause error) *Error {
	return &Error{
		Kind:    KindEncrypted,
		Op:      "render",
		Message: "document is password protected",
		Err:     cause,
	}
}

// Classify converts any error into an *Error. Structured errors pass through;
// others are matched by known patterns before falling back to internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if isTimeout(err) {
		return &Error{Kind: KindTranscode, Message: "timed out", Err: err, Timeout: true}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password") || strings.Contains(msg, "encrypt"):
		return &Error{Kind: KindEncrypted, Err: err}
	case strings.Contains(msg, "corrupt") || strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "invalid pdf"):
		return &Error{Kind: KindDecode, Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return &Error{Kind: KindTranscode, Message: "timed out", Err: err, Timeout: true}
	}

	return &Error{Kind: KindInternal, Err: err}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
