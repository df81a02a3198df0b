package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// JSON responds 200 with the given value encoded as JSON.
func JSON(v any) Response { return JSONStatus(http.StatusOK, v) }

// JSONStatus responds with the given status code and JSON body.
func JSONStatus(status int, v any) Response {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("error while encoding response body", "error", err)
		}
	}
}

// Empty responds 204 with no body.
func Empty() Response {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func Redirect(url string, status int) Response {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, url, status)
	}
}

// PNG responds 200 with a png image body.
func PNG(data []byte) Response {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}
}

// Error logs the given error while returning a generic 500 to the client.
func Error(err error) Response {
	return func(w http.ResponseWriter, _ *http.Request) {
		slog.Error("unhandled error while serving request", "error", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal error - please try again later")
	}
}

// ClientErrorf returns a client-facing error with the given status code.
func ClientErrorf(status int, format string, args ...any) Response {
	msg := fmt.Sprintf(format, args...)
	return func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, status, msg)
	}
}

func NotFoundf(format string, args ...any) Response {
	return ClientErrorf(http.StatusNotFound, format, args...)
}

func Forbiddenf(format string, args ...any) Response {
	return ClientErrorf(http.StatusForbidden, format, args...)
}

func Conflictf(format string, args ...any) Response {
	return ClientErrorf(http.StatusConflict, format, args...)
}

func writeErrorBody(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
