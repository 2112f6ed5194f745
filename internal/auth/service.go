package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// keyTTLHours is the lifetime of verification and reset keys.
const keyTTLHours = 1

// ServiceConfig holds the non-collaborator knobs of the auth service.
type ServiceConfig struct {
	AppName string
	BaseURL string
}

// Service orchestrates registration, login, token refresh, email
// verification, and password reset. It holds no mutable state; the user
// record's fields are the state machine.
type Service struct {
	config     ServiceConfig
	repo       Repository
	hasher     Hasher
	codec      *Codec
	clock      Clock
	mailer     Mailer
	revocation RevocationStore
	logger     *slog.Logger
}

// NewService constructs a Service. The revocation store is optional; without
// it refresh tokens are not pinned and logout only succeeds client-side.
func NewService(cfg ServiceConfig, repo Repository, hasher Hasher, codec *Codec, clock Clock, mailer Mailer, revocation RevocationStore, logger *slog.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:     cfg,
		repo:       repo,
		hasher:     hasher,
		codec:      codec,
		clock:      clock,
		mailer:     mailer,
		revocation: revocation,
		logger:     logger,
	}
}

// NormalizeEmail lowercases an email address so lookups and the unique index
// match case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and sends the verification email.
// The user is persisted before mailing; a mailer failure does not roll back
// registration and is only logged.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (PublicUser, error) {
	email = NormalizeEmail(email)

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return PublicUser{}, fmt.Errorf("register: %w", ErrEmailTaken)
	}
	if !errors.Is(err, ErrNotFound) {
		return PublicUser{}, fmt.Errorf("register: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return PublicUser{}, fmt.Errorf("register: %w", err)
	}
	key, err := GenerateKey()
	if err != nil {
		return PublicUser{}, fmt.Errorf("register: %w", err)
	}

	// The unique index on email remains the final arbiter: a concurrent
	// registration between the existence check and this insert loses with
	// ErrEmailTaken, not a driver error.
	user, err := s.repo.Create(ctx, CreateUserParams{
		Email:                   email,
		PasswordHash:            hash,
		FirstName:               firstName,
		LastName:                lastName,
		Roles:                   []Role{RoleUser},
		EmailVerificationKey:    key,
		EmailVerificationExpiry: KeyExpiry(s.clock, keyTTLHours),
	})
	if err != nil {
		return PublicUser{}, fmt.Errorf("register: %w", err)
	}

	s.sendVerificationMail(ctx, user, key)
	return user.Public(), nil
}

// Login checks credentials and issues an access and refresh token pair. It
// does not require a verified email; verification gating belongs to the
// authorization layer. Wrong password and unknown email both surface as
// distinct kinds per the stored behavior: NotFound for unknown email,
// InvalidCredentials for a hash mismatch.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return Session{}, fmt.Errorf("login: %w", ErrInvalidCredentials)
	}
	return s.issueSession(ctx, user, "login")
}

// LoginWithToken re-issues an access token for an already authenticated
// principal. The user may have been deleted since the token was minted.
func (s *Service) LoginWithToken(ctx context.Context, userID int64) (Session, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("login with token: %w", err)
	}
	accessToken, err := s.codec.Issue(user, TokenAccess)
	if err != nil {
		return Session{}, fmt.Errorf("login with token: %w", err)
	}
	return Session{User: user.Public(), AccessToken: accessToken}, nil
}

// RefreshAccessToken verifies a refresh token and rotates it, returning a
// fresh access and refresh pair. With a revocation store configured the
// presented token must match the stored current token for the user.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.codec.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return Session{}, fmt.Errorf("refresh token: %w", err)
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return Session{}, fmt.Errorf("refresh token: %w", err)
	}
	if s.revocation != nil {
		current, err := s.revocation.RefreshToken(ctx, user.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Session{}, fmt.Errorf("refresh token: %w", err)
		}
		if errors.Is(err, ErrNotFound) || current != refreshToken {
			return Session{}, fmt.Errorf("refresh token: %w", ErrInvalidCredentials)
		}
	}
	return s.issueSession(ctx, user, "refresh token")
}

// Logout revokes the user's refresh token and denylists the presented access
// token for its remaining lifetime. Without a revocation store it is a no-op.
func (s *Service) Logout(ctx context.Context, userID int64, accessToken string) error {
	if s.revocation == nil {
		return nil
	}
	if err := s.revocation.DeleteRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if accessToken == "" {
		return nil
	}
	claims, err := s.codec.Verify(accessToken, TokenAccess)
	if err != nil {
		// Expired or invalid tokens need no denylist entry.
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(s.clock.Now())
	if err := s.revocation.BlacklistAccessToken(ctx, accessToken, remaining); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// VerifyEmail consumes an email verification key, marking the account
// verified and clearing the key in one update.
func (s *Service) VerifyEmail(ctx context.Context, key string) error {
	user, err := s.repo.FindByVerificationKey(ctx, key)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if user.IsVerified {
		return fmt.Errorf("verify email: %w", ErrAlreadyVerified)
	}
	if KeyExpired(s.clock, user.EmailVerificationExpiry) {
		return fmt.Errorf("verify email: %w", ErrKeyExpired)
	}
	_, err = s.repo.Update(ctx, user.ID, map[string]any{
		"is_verified":               true,
		"email_verification_key":    nil,
		"email_verification_expiry": nil,
	})
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return nil
}

// SendVerificationEmail issues a fresh verification key for an unverified
// account. The overwrite invalidates any previously issued key.
func (s *Service) SendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	if user.IsVerified {
		return fmt.Errorf("send verification email: %w", ErrAlreadyVerified)
	}
	key, err := GenerateKey()
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	expiry := KeyExpiry(s.clock, keyTTLHours)
	user, err = s.repo.Update(ctx, user.ID, map[string]any{
		"email_verification_key":    key,
		"email_verification_expiry": expiry,
	})
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, s.emailData(user, "/api/auth/verify-email/"+key)); err != nil {
		return fmt.Errorf("send verification email: %w: %s", ErrInternal, err)
	}
	return nil
}

// ForgotPassword issues a reset key and mails the reset link. An unknown
// email surfaces as NotFound; masking the distinction is left to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	key, err := GenerateKey()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	expiry := KeyExpiry(s.clock, keyTTLHours)
	user, err = s.repo.Update(ctx, user.ID, map[string]any{
		"reset_password_key":    key,
		"reset_password_expiry": expiry,
	})
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, s.emailData(user, "/api/auth/reset-password/"+key)); err != nil {
		return fmt.Errorf("forgot password: %w: %s", ErrInternal, err)
	}
	return nil
}

// ResetPassword consumes a reset key, replacing the password hash and
// clearing the key in one update.
func (s *Service) ResetPassword(ctx context.Context, key, newPassword string) error {
	user, err := s.repo.FindByResetKey(ctx, key)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if KeyExpired(s.clock, user.ResetPasswordExpiry) {
		return fmt.Errorf("reset password: %w", ErrKeyExpired)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	_, err = s.repo.Update(ctx, user.ID, map[string]any{
		"password_hash":         hash,
		"reset_password_key":    nil,
		"reset_password_expiry": nil,
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user *User, op string) (Session, error) {
	accessToken, err := s.codec.Issue(user, TokenAccess)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	refreshToken, err := s.codec.Issue(user, TokenRefresh)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if s.revocation != nil {
		if err := s.revocation.StoreRefreshToken(ctx, user.ID, refreshToken, s.codec.TTL(TokenRefresh)); err != nil {
			return Session{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return Session{User: user.Public(), AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) sendVerificationMail(ctx context.Context, user *User, key string) {
	err := s.mailer.SendVerificationEmail(ctx, user.Email, s.emailData(user, "/api/auth/verify-email/"+key))
	if err != nil {
		s.logger.Warn("verification email failed",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
}

func (s *Service) emailData(user *User, path string) EmailData {
	return EmailData{
		Username:       user.FullName(),
		Link:           s.config.BaseURL + path,
		AppName:        s.config.AppName,
		ExpirationTime: "60 minutes",
	}
}
