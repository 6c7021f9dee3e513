// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the session handlers. These provide
// more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidSessionIDError = 3002 // Target session ID in the WS URL does not exist or is invalid.
	SessionFullError      = 3003 // No free seat remained for the joining participant.
)
