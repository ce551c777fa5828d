package extract

import (
	"errors"
	"net"
	"strings"
)

// TransportError wraps a network, timeout, or credential failure talking to
// the vision service. The caller may retry or fall back to local extraction;
// no retry happens inside this package.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "extract: transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SchemaParseError reports a vision response that was not parseable JSON. The
// raw text is persisted to the debug directory before this is returned.
type SchemaParseError struct {
	Err      error
	DumpPath string
}

func (e *SchemaParseError) Error() string {
	return "extract: response is not valid JSON: " + e.Err.Error()
}

func (e *SchemaParseError) Unwrap() error {
	return e.Err
}

// SchemaValidationError reports a parsed payload that does not conform to the
// card schema. The offending payload is persisted before this is returned.
type SchemaValidationError struct {
	Err      error
	DumpPath string
}

func (e *SchemaValidationError) Error() string {
	return "extract: payload failed schema validation: " + e.Err.Error()
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether the error chain contains a TransportError or
// matches common network failure patterns.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"connection refused",
		"no such host",
		"i/o timeout",
		"context deadline exceeded",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsSchemaFailure reports whether the error is a parse or validation failure.
// Schema failures are not retryable; the payload is already quarantined.
func IsSchemaFailure(err error) bool {
	var pe *SchemaParseError
	var ve *SchemaValidationError
	return errors.As(err, &pe) || errors.As(err, &ve)
}
