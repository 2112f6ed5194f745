package auth

import "time"

// Role enumerates the access levels a user account can hold.
type Role string

const (
	// RoleUser is the default role granted at registration.
	RoleUser Role = "USER"
	// RoleAdmin marks operator accounts.
	RoleAdmin Role = "ADMIN"
)

// User represents a user account, including credential and verification state.
// Verification and reset keys live directly on the record; at most one live key
// of each kind exists per user, and a consumed key is cleared to nil.
type User struct {
	ID                      int64
	Email                   string
	PasswordHash            string
	FirstName               string
	LastName                string
	Roles                   []Role
	IsVerified              bool
	EmailVerificationKey    *string
	EmailVerificationExpiry *time.Time
	ResetPasswordKey        *string
	ResetPasswordExpiry     *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// FullName joins first and last name for email salutations.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// PublicUser is the externally visible projection of a user account. It never
// carries the password hash or raw verification keys.
type PublicUser struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Roles      []Role    `json:"roles"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public returns the safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Roles:      u.Roles,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Session bundles a public user with freshly issued tokens. RefreshToken is
// empty for flows that re-issue only an access token.
type Session struct {
	User         PublicUser `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
}
