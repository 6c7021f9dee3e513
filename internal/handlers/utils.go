// internal/handlers/utils.go
package handlers

import "strings"

// extractCookieToken returns the named cookie's value from a raw Cookie
// header. Both the HTTP and the websocket handshake paths hand us the header
// string, so parsing stays header-based instead of going through
// http.Request.Cookie.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, cookieName+"="); ok {
			return v
		}
	}
	return ""
}
