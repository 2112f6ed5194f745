package auth

import "errors"

// Sentinel errors for authentication flows. Services wrap them with operation
// context via fmt.Errorf("op: %w", err); callers classify with errors.Is.
var (
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound indicates no user matches the given email, id, or key.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates a password or token check failed.
	// It deliberately does not distinguish which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyVerified indicates the account email was verified earlier.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrKeyExpired indicates a verification or reset key past its expiry.
	ErrKeyExpired = errors.New("verification key expired")

	// ErrTokenExpired indicates a token whose exp claim has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature indicates a token signed with the wrong secret.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenMalformed indicates a structurally invalid token.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSigning indicates token issuance failed, e.g. missing secret.
	ErrTokenSigning = errors.New("token signing failed")

	// ErrInternal wraps unexpected lower-layer failures so driver error
	// types never cross the service boundary.
	ErrInternal = errors.New("internal error")
)
