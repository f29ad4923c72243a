package domain

// Caller identifies the authenticated principal of a request.
// Token issuance happens outside this service; only verified claims land here.
type Caller struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}
