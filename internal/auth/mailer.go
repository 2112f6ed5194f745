package auth

import "context"

// EmailData carries the template variables for verification and reset mail.
type EmailData struct {
	Username       string
	Link           string
	AppName        string
	ExpirationTime string
}

// Mailer sends templated account emails. Implementations own retry policy;
// the auth service makes a single attempt and reports a single outcome.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to string, data EmailData) error
	SendPasswordResetEmail(ctx context.Context, to string, data EmailData) error
}
