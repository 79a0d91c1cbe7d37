package model

import "time"

// User is the identity root. The password hash and the current refresh token
// are never serialized into any client-facing response.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Password    string `json:"-"`
	DisplayName string `json:"displayName"`

	// RefreshToken holds the single outstanding session token. A refresh
	// request is only honored while the presented token is textually equal
	// to this value. Empty means no active session.
	RefreshToken string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
