package response

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{
		Status: "success",
		Data:   data,
	})
}

func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{
		Status:  "error",
		Message: msg,
	})
}

// FieldErrors answers a rejected form with one message per field.
func FieldErrors(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	write(w, status, APIResponse{
		Status:  "error",
		Message: msg,
		Errors:  fields,
	})
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
