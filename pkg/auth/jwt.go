// Package auth issues and checks the session tokens of the websocket server.
// A token binds a client to a session id, so a reconnecting browser gets its
// id (and its log tag) back.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/logger"
)

const issuer = "retrocpc"

var (
	// ErrNoToken is returned when a request carries no token.
	ErrNoToken = errors.New("no token in request")

	fallbackOnce   sync.Once
	fallbackSecret string
)

// getJWTSecret liest das Secret aus der Umgebung oder der Konfiguration.
// Ohne beides gilt ein zufälliges Secret für die Laufzeit des Prozesses.
func getJWTSecret() []byte {
	if env := os.Getenv("JWT_SECRET_KEY"); env != "" {
		return []byte(env)
	}
	if secret := configuration.GetString("Auth", "secret_key", ""); secret != "" {
		return []byte(secret)
	}
	fallbackOnce.Do(func() {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("auth: no randomness for the token secret: %v", err))
		}
		fallbackSecret = hex.EncodeToString(buf)
		logger.AuthWarn("no secret_key configured, tokens are only valid until restart")
	})
	return []byte(fallbackSecret)
}

func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("Auth", "token_expiration_hours", 24)
	return time.Duration(hours) * time.Hour
}

// SessionClaims are the claims of a session token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for sessionID.
func GenerateToken(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(getTokenExpiration())
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   "guest",
			ID:        sessionID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(getJWTSecret())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ValidateToken checks signature, algorithm, issuer and expiry.
func ValidateToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return getJWTSecret(), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ExtractToken reads the token from the Authorization header, the
// session_token cookie or the token query parameter, in that order.
func ExtractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		kind, token, ok := strings.Cut(header, " ")
		if !ok || kind != "Bearer" || token == "" {
			return "", errors.New("invalid authorization header format")
		}
		return token, nil
	}
	if cookie, err := r.Cookie("session_token"); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrNoToken
}
