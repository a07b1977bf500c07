package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/juba-labs/hornwatch/internal/models"
)

// UnsubscribeHandler takes digest recipients off the list. The GET form is
// what the email link hits, so it answers with a small HTML page instead of
// JSON; the POST form is a plain API call.
type UnsubscribeHandler struct {
	Unsubs *models.UnsubscribeStore
}

// Unsubscribe handles GET /api/unsubscribe?token=...
func (h *UnsubscribeHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	email, err := h.Unsubs.EmailForToken(r.Context(), token)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if email == "" {
		http.Error(w, "unknown token", http.StatusNotFound)
		return
	}

	if err := h.Unsubs.Add(r.Context(), email, token); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>Unsubscribed</title></head>
<body style="font-family:sans-serif;max-width:480px;margin:80px auto;text-align:center;">
<h2>You're unsubscribed</h2>
<p>%s will no longer receive the weekly Horn Risk Delta digest.</p>
</body></html>`, html.EscapeString(email))
}

// UnsubscribeByEmail handles POST /api/unsubscribe with an {email} body.
func (h *UnsubscribeHandler) UnsubscribeByEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Email) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if err := h.Unsubs.Add(r.Context(), email, uuid.NewString()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed", "email": email})
}
