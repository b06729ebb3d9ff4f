package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// RespondJSON writes an arbitrary payload with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondSuccess writes a success envelope.
func RespondSuccess(w http.ResponseWriter, message string, data any, statusCode int) {
	RespondJSON(w, Response{Success: true, Message: message, Data: data}, statusCode)
}

// RespondError writes a failure envelope. Data is always null on errors.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, Response{Success: false, Message: message}, statusCode)
}
