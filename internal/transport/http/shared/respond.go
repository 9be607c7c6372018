// Package shared holds response helpers common to all handlers.
package shared

import (
	"net/http"

	dErrors "vouchsafe/pkg/domain-errors"
)

// WriteText writes a plain-text response. The user-facing surface of this
// service is plain text and small HTML forms, not JSON.
func WriteText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

// WriteErrorText writes message with the HTTP status derived from the
// domain error's code.
func WriteErrorText(w http.ResponseWriter, err error, message string) {
	WriteText(w, dErrors.ToHTTPStatus(dErrors.CodeOf(err)), message)
}

// WriteHTML writes a rendered HTML page.
func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
