package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON envelope htmx callers receive.
type ErrorResponse struct {
	Error string `json:"error"`
	// Redirect is where the client should go instead, if anywhere.
	Redirect string `json:"redirect,omitempty"`
}

// WriteError answers htmx requests with the JSON envelope and everything else
// with a plain text error.
func WriteError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeEnvelope(w, r, code, ErrorResponse{Error: msg})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, code int, body ErrorResponse) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
		return
	}
	http.Error(w, body.Error, code)
}

// Redirect sends the client to target. htmx requests get HX-Redirect so the
// browser performs a full navigation instead of swapping a redirect body.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
