// Package respond owns the wire shapes shared by every HTTP handler:
// the JSON writer and the {"error":{"code","message"}} envelope. It
// sits below the handler packages so they never need to import the
// router.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/cmorg789/vox/internal/logger"
)

// ErrorBody is the wire shape of every error response:
// {"error":{"code","message",...extras}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code plus any
// endpoint-specific extras.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Extra   map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the detail object.
func (d ErrorDetail) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["code"] = d.Code
	out["message"] = d.Message
	return json.Marshal(out)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", logger.Err(err))
	}
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string, extra ...map[string]any) {
	detail := ErrorDetail{Code: code, Message: message}
	if len(extra) > 0 {
		detail.Extra = extra[0]
	}
	WriteJSON(w, status, ErrorBody{Error: detail})
}

// Typed error writers, one per error kind.

func BadRequest(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusBadRequest, code, message)
}

func Unauthorized(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

func Forbidden(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusForbidden, code, message)
}

func NotFound(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusNotFound, code, message)
}

func Conflict(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusConflict, code, message)
}

func Gone(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusGone, code, message)
}

func TooLarge(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, code, message)
}

func Unprocessable(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusUnprocessableEntity, code, message)
}

func Internal(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
