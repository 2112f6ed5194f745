package users

import (
	"errors"
	"time"
)

// User is the operator-facing account summary. It never carries credential
// material.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Roles      []string  `json:"roles"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrForbidden indicates the requester lacks the admin role.
	ErrForbidden = errors.New("admin role required")
)
