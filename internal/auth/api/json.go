package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// failure is the body of every non-2xx auth response:
// {"error":{"code":"...","message":"..."}}. Clients branch on code, so
// codes are stable; messages are free-form.
type failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type failureEnvelope struct {
	Error failure `json:"error"`
}

// sendJSON writes v with the no-store policy every auth response needs:
// token material must never land in a shared cache.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but note it upstream.
		_ = err
	}
}

func sendError(w http.ResponseWriter, status int, code, msg string) {
	sendJSON(w, status, failureEnvelope{Error: failure{Code: code, Message: msg}})
}

// readJSON decodes a single strict JSON value from the request body:
// unknown fields, trailing data, and bodies over maxBytes all fail.
func readJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body over %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("decode request body: %w", err)
	}

	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
