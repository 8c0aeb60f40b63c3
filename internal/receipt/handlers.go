package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxPayloadSize bounds invoke bodies; base64 adds a third to a 50MB photo
const maxPayloadSize = int64(70 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes an {"error": ...} body with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleToken exchanges basic credentials for an access token
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticateBasic(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="Receipt Ledger"`)
		jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		slog.Error("Error issuing token", "user", user, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// handleInvoke runs one operation. The HTTP status is 200 whenever the operation ran;
// the outcome is in the envelope.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	operation := r.PathValue("operation")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "Payload is too large. Maximum image size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Error("Error reading request body", "operation", operation, "error", err)
		jsonError(w, "Error reading request", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.service.Handle(r.Context(), operation, body))
}

// handleFile serves a stored image for a signed link
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	data, contentType, err := s.service.OpenFile(r.Context(), key, r.URL.Query().Get("sig"))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Error serving file", "key", key, "error", err)
		}
		jsonError(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Write(data)
}
