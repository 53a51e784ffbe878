package model

// Principal is the caller identified by an access token.
type Principal struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}
