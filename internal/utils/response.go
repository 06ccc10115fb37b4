package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-checkout/internal/apperror"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Code      string      `json:"code,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, code, detail string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Code:      code,
		Error:     detail,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps err to its status and stable code. The wrapped cause is
// only included when exposeDetail is set.
func WriteError(w http.ResponseWriter, err error, exposeDetail bool) {
	kind := apperror.KindOf(err)
	resp := ErrorResponse(apperror.PublicMessage(err), string(kind), "")
	if exposeDetail {
		resp.Error = err.Error()
	}
	WriteJSON(w, apperror.HTTPStatus(kind), resp)
}
