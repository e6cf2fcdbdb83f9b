package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cachegrid/assetcache/internal/logger"
)

// response is the JSON envelope used for error and status replies. Stream
// bodies (GET on a version) bypass this entirely and write raw bytes.
type response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("api: failed to encode JSON response", "error", err)
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func okResponse(data interface{}) response {
	return response{Status: "ok", Timestamp: time.Now().UTC(), Data: data}
}

func errorResponse(err error) response {
	return response{Status: "error", Timestamp: time.Now().UTC(), Error: err.Error()}
}
