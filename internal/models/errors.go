package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupportedFormat is returned when neither dialect can be detected.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// AssetError is implemented by every error that blocks resolution of an
// asset. It names the resource that caused the failure.
type AssetError interface {
	error
	ResourceURL() string
	StatusCode() int
}

// TransportError means no usable response was obtained within the retry budget.
type TransportError struct {
	URL      string
	Attempts int
	Status   int // last observed status, 0 if no response
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %d attempts failed (last status %d): %v", e.URL, e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %d attempts failed: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error       { return e.Err }
func (e *TransportError) ResourceURL() string { return e.URL }
func (e *TransportError) StatusCode() int     { return e.Status }

// HTTPStatusError is a well-formed non-2xx response. It is never retried.
type HTTPStatusError struct {
	URL     string
	Status  int
	Body    []byte
	Message string
}

func (e *HTTPStatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.Status, msg)
}

func (e *HTTPStatusError) ResourceURL() string { return e.URL }
func (e *HTTPStatusError) StatusCode() int     { return e.Status }

// ManifestFormatError reports a structurally malformed manifest.
type ManifestFormatError struct {
	URL     string
	Status  int
	Message string
	Err     error
}

func (e *ManifestFormatError) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.URL, e.Message)
}

func (e *ManifestFormatError) Unwrap() error       { return e.Err }
func (e *ManifestFormatError) ResourceURL() string { return e.URL }
func (e *ManifestFormatError) StatusCode() int     { return e.Status }

// NotAManifestError means the body does not start with the dialect's marker.
type NotAManifestError struct {
	URL      string
	Status   int
	Expected Format
}

func (e *NotAManifestError) Error() string {
	return fmt.Sprintf("%s is not a %s manifest", e.URL, e.Expected)
}

func (e *NotAManifestError) ResourceURL() string { return e.URL }
func (e *NotAManifestError) StatusCode() int     { return e.Status }

// FormatErrorf builds a ManifestFormatError for doc.
func FormatErrorf(doc *Document, format string, args ...any) *ManifestFormatError {
	e := &ManifestFormatError{Message: fmt.Sprintf(format, args...)}
	if doc != nil {
		e.URL = doc.URL
		e.Status = doc.Status
	}
	return e
}

// WrapFormatError builds a ManifestFormatError for doc whose cause is err.
// The message is the formatted prefix followed by err.
func WrapFormatError(doc *Document, err error, format string, args ...any) *ManifestFormatError {
	e := FormatErrorf(doc, "%s: %v", fmt.Sprintf(format, args...), err)
	e.Err = err
	return e
}
