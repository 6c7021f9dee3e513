// internal/handlers/identity.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/auth"
)

// EnsureParticipant resolves the caller's ephemeral identity from the
// auth_token cookie, minting a fresh one when the cookie is missing or no
// longer verifies. No database is involved; the token itself is the account.
func EnsureParticipant(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		idStr, name, err := auth.AuthenticateJWT(token)
		if err == nil {
			id, parseErr := uuid.Parse(idStr)
			if parseErr != nil {
				return uuid.Nil, "", fmt.Errorf("invalid participant id in token: %w", parseErr)
			}
			return id, name, nil
		}
		// fall through and mint a new identity
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Guest"
	}
	id := uuid.New()
	token, err := auth.CreateJWT(id.String(), name)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to create ephemeral JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return id, name, nil
}
