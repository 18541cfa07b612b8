package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retrocpc/pkg/logger"
)

// SessionResponse is the answer of HandleCreateSession.
type SessionResponse struct {
	Success   bool      `json:"success"`
	SessionID string    `json:"sessionId,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// HandleCreateSession creates a session id and its token (POST only).
func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		logger.AuthWarn("invalid method for session creation: %s", r.Method)
		respond(w, http.StatusMethodNotAllowed, SessionResponse{Message: "method not allowed"})
		return
	}

	sessionID := uuid.New().String()
	token, expires, err := GenerateToken(sessionID)
	if err != nil {
		logger.AuthWarn("token for %s: %v", sessionID, err)
		respond(w, http.StatusInternalServerError, SessionResponse{Message: "token creation failed"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	logger.AuthInfo("session %s created for %s", sessionID, clientIP(r))
	respond(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: expires,
	})
}

// SessionFromRequest validates the token of r and returns its session id.
func SessionFromRequest(r *http.Request) (string, error) {
	token, err := ExtractToken(r)
	if err != nil {
		return "", err
	}
	claims, err := ValidateToken(token)
	if err != nil {
		logger.AuthWarn("rejected token from %s: %v", clientIP(r), err)
		return "", err
	}
	return claims.SessionID, nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

func respond(w http.ResponseWriter, status int, body SessionResponse) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
