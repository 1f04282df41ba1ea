// Package httpx provides the JSON response envelope shared by every endpoint.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success    bool                `json:"success"`
	Data       any                 `json:"data,omitempty"`
	Message    string              `json:"message,omitempty"`
	Errors     []shared.FieldError `json:"errors,omitempty"`
	Pagination *shared.Pagination  `json:"pagination,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a successful envelope carrying data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Message sends a successful envelope with only a message.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: true, Message: message})
}

// Paginated sends a page of items with pagination metadata.
func Paginated(w http.ResponseWriter, items any, p shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: items, Pagination: &p})
}

// Fail sends an error envelope.
func Fail(w http.ResponseWriter, status int, message string, fields ...shared.FieldError) {
	JSON(w, status, Envelope{Success: false, Message: message, Errors: fields})
}

// ErrBadBody is returned by DecodeJSON for unreadable or malformed bodies.
var ErrBadBody = errors.New("invalid request body")

// DecodeJSON decodes JSON request body into the target.
func DecodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.FieldInvalid("body", "request body is required")
		}
		return shared.FieldInvalid("body", ErrBadBody.Error())
	}
	return nil
}
