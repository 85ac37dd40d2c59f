// Package httputil writes the JSON envelope shared by every API endpoint.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jobfill/jobfill/internal/domain"
)

// Response is the envelope around every API payload
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the error part of the envelope. Details carries the AppError metadata.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON writes data in a success envelope; success follows the status class
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// JSONError writes an error envelope
func JSONError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	write(w, status, Response{
		Error: &Error{Code: code, Message: message, Details: details},
	})
}

// ErrorFromDomain writes err. Errors that are not AppErrors are reported as a
// bare internal error so their text never reaches the client.
func ErrorFromDomain(w http.ResponseWriter, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		appErr = domain.ErrInternal("")
	}
	JSONError(w, domain.GetHTTPStatus(appErr), appErr.Code, appErr.Message, appErr.Metadata)
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// DecodeJSON decodes a request body strictly: unknown fields are rejected
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.ErrValidationField("body", "request body is required")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidationField("body", "request body is required")
		}
		return domain.ErrValidationField("body", "invalid JSON: "+err.Error())
	}
	return nil
}
