// Package httpx provides the JSON envelope used by every API endpoint.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agrohub/agrohub/internal/shared"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a success envelope with 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// Message writes a success envelope carrying only a message.
func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: msg})
}

// Fail writes a failure envelope.
func Fail(w http.ResponseWriter, status int, code, msg, field string) {
	JSON(w, status, Envelope{Success: false, Error: msg, Code: code, Field: field})
}

// DecodeJSON decodes JSON request body into the target struct. Unknown fields
// are ignored.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return shared.NewError(shared.ErrValidation, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewError(shared.ErrValidation, "request body is required")
		}
		return shared.NewError(shared.ErrValidation, "malformed JSON body")
	}
	return nil
}
