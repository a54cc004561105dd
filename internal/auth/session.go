package auth

// SessionData represents the authenticated caller of a gateway request
type SessionData struct {
	UserID string `json:"user_id"`
}
