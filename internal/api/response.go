package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// isoMillis matches the timestamp format the web client already parses.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// envelope is the body shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode error only means the client went away.
	_ = json.NewEncoder(w).Encode(payload)
}

func respondData(w http.ResponseWriter, status int, data any, message string) {
	respondJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	respondJSON(w, status, envelope{Success: false, Error: errMsg, Message: message})
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
