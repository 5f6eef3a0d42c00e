package models

import "time"

// User is the identity snapshot returned by the auth endpoints. It is also
// what the credential store persists, hence the JSON tags.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	SubscriptionTier string     `json:"subscription_tier,omitempty"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Session pairs a bearer token with the user it belongs to.
type Session struct {
	Token     string
	TokenType string
	ExpiresAt *time.Time
	User      User
}

type SignupRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}
