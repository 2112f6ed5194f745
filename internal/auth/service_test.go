package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	users  map[int64]*User
	nextID int64

	// Error injection
	findErr   error
	createErr error
	updateErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[int64]*User), nextID: 1}
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockRepository) FindByVerificationKey(ctx context.Context, key string) (*User, error) {
	for _, user := range m.users {
		if user.EmailVerificationKey != nil && *user.EmailVerificationKey == key {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) FindByResetKey(ctx context.Context, key string) (*User, error) {
	for _, user := range m.users {
		if user.ResetPasswordKey != nil && *user.ResetPasswordKey == key {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, user := range m.users {
		if user.Email == params.Email {
			return nil, ErrEmailTaken
		}
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := params.EmailVerificationKey
	expiry := params.EmailVerificationExpiry
	user := &User{
		ID:                      m.nextID,
		Email:                   params.Email,
		PasswordHash:            params.PasswordHash,
		FirstName:               params.FirstName,
		LastName:                params.LastName,
		Roles:                   params.Roles,
		EmailVerificationKey:    &key,
		EmailVerificationExpiry: &expiry,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	m.users[user.ID] = user
	m.nextID++
	copied := *user
	return &copied, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, updates map[string]any) (*User, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "password_hash":
			user.PasswordHash = value.(string)
		case "is_verified":
			user.IsVerified = value.(bool)
		case "email_verification_key":
			user.EmailVerificationKey = optionalString(value)
		case "email_verification_expiry":
			user.EmailVerificationExpiry = optionalTime(value)
		case "reset_password_key":
			user.ResetPasswordKey = optionalString(value)
		case "reset_password_expiry":
			user.ResetPasswordExpiry = optionalTime(value)
		}
	}
	copied := *user
	return &copied, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func optionalString(value any) *string {
	if value == nil {
		return nil
	}
	s := value.(string)
	return &s
}

func optionalTime(value any) *time.Time {
	if value == nil {
		return nil
	}
	ts := value.(time.Time)
	return &ts
}

// ============================================================================
// MOCK MAILER
// ============================================================================

type sentMail struct {
	to   string
	data EmailData
}

type mockMailer struct {
	verifications []sentMail
	resets        []sentMail
	sendErr       error
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, to string, data EmailData) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.verifications = append(m.verifications, sentMail{to: to, data: data})
	return nil
}

func (m *mockMailer) SendPasswordResetEmail(ctx context.Context, to string, data EmailData) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.resets = append(m.resets, sentMail{to: to, data: data})
	return nil
}

// ============================================================================
// FIXTURE
// ============================================================================

type serviceFixture struct {
	service    *Service
	repo       *mockRepository
	mailer     *mockMailer
	clock      *fakeClock
	codec      *Codec
	revocation *RedisRevocationStore
}

func newServiceFixture(t *testing.T, withRevocation bool) *serviceFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := newMockRepository()
	mailer := &mockMailer{}
	codec := testCodec(clock)

	var revocation *RedisRevocationStore
	var store RevocationStore
	if withRevocation {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		revocation = NewRevocationStore(client)
		store = revocation
	}

	service := NewService(ServiceConfig{
		AppName: "Gatehouse",
		BaseURL: "http://localhost:8080",
	}, repo, NewHasher(), codec, clock, mailer, store, nil)

	return &serviceFixture{
		service:    service,
		repo:       repo,
		mailer:     mailer,
		clock:      clock,
		codec:      codec,
		revocation: revocation,
	}
}

func (f *serviceFixture) register(t *testing.T, email string) PublicUser {
	t.Helper()
	user, err := f.service.Register(context.Background(), email, "Abcdef1!", "A", "B")
	require.NoError(t, err)
	return user
}

// ============================================================================
// REGISTER / LOGIN
// ============================================================================

func TestRegisterAndLogin(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()

	user := f.register(t, "a@x.com")
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, []Role{RoleUser}, user.Roles)
	assert.False(t, user.IsVerified)

	// Verification mail carries the link with the persisted key.
	require.Len(t, f.mailer.verifications, 1)
	stored := f.repo.users[user.ID]
	require.NotNil(t, stored.EmailVerificationKey)
	assert.Contains(t, f.mailer.verifications[0].data.Link, *stored.EmailVerificationKey)
	assert.Equal(t, "A B", f.mailer.verifications[0].data.Username)

	session, err := f.service.Login(ctx, "a@x.com", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	claims, err := f.codec.Verify(session.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "a@x.com")

	_, err := f.service.Login(context.Background(), "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newServiceFixture(t, false)

	_, err := f.service.Login(context.Background(), "ghost@x.com", "Abcdef1!")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterDuplicateEmailCaseInsensitive(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "A@x.com")

	_, err := f.service.Register(context.Background(), "a@X.COM", "Abcdef1!", "A", "B")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterInsertRaceTranslatesToConflict(t *testing.T) {
	f := newServiceFixture(t, false)
	// Existence check sees nothing, but the insert hits the unique index.
	f.repo.createErr = ErrEmailTaken

	_, err := f.service.Register(context.Background(), "a@x.com", "Abcdef1!", "A", "B")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterSucceedsWhenMailerFails(t *testing.T) {
	f := newServiceFixture(t, false)
	f.mailer.sendErr = errors.New("smtp connection refused")

	user, err := f.service.Register(context.Background(), "a@x.com", "Abcdef1!", "A", "B")
	require.NoError(t, err)
	_, ok := f.repo.users[user.ID]
	assert.True(t, ok, "registration must persist despite mail failure")
}

func TestLoginNormalizesEmail(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "a@x.com")

	session, err := f.service.Login(context.Background(), "  A@X.com ", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", session.User.Email)
}

// ============================================================================
// TOKEN FLOWS
// ============================================================================

func TestLoginWithToken(t *testing.T) {
	f := newServiceFixture(t, false)
	user := f.register(t, "a@x.com")

	session, err := f.service.LoginWithToken(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.Empty(t, session.RefreshToken, "token login re-issues access only")

	_, err = f.service.LoginWithToken(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshAccessTokenRotates(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()
	user := f.register(t, "a@x.com")

	session, err := f.service.Login(ctx, "a@x.com", "Abcdef1!")
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(time.Minute)
	rotated, err := f.service.RefreshAccessToken(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEmpty(t, rotated.RefreshToken)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// Rotation replaced the stored token; the old one no longer refreshes.
	current, err := f.revocation.RefreshToken(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, rotated.RefreshToken, current)

	_, err = f.service.RefreshAccessToken(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "a@x.com")

	session, err := f.service.Login(context.Background(), "a@x.com", "Abcdef1!")
	require.NoError(t, err)

	_, err = f.service.RefreshAccessToken(context.Background(), session.AccessToken)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestRefreshDeletedUser(t *testing.T) {
	f := newServiceFixture(t, false)
	user := f.register(t, "a@x.com")

	session, err := f.service.Login(context.Background(), "a@x.com", "Abcdef1!")
	require.NoError(t, err)

	require.NoError(t, f.repo.Delete(context.Background(), user.ID))
	_, err = f.service.RefreshAccessToken(context.Background(), session.RefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "a@x.com")

	session, err := f.service.Login(context.Background(), "a@x.com", "Abcdef1!")
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(8 * 24 * time.Hour)
	_, err = f.service.RefreshAccessToken(context.Background(), session.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogoutRevokesTokens(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()
	user := f.register(t, "a@x.com")

	session, err := f.service.Login(ctx, "a@x.com", "Abcdef1!")
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, user.ID, session.AccessToken))

	_, err = f.revocation.RefreshToken(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	revoked, err := f.revocation.IsBlacklisted(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Refreshing with the revoked session's token must fail.
	_, err = f.service.RefreshAccessToken(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// ============================================================================
// EMAIL VERIFICATION
// ============================================================================

func TestVerifyEmail(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()
	user := f.register(t, "a@x.com")
	key := *f.repo.users[user.ID].EmailVerificationKey

	require.NoError(t, f.service.VerifyEmail(ctx, key))

	stored := f.repo.users[user.ID]
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.EmailVerificationKey, "consumed key must be cleared")
	assert.Nil(t, stored.EmailVerificationExpiry)

	// The key was single-use; replaying it no longer matches anyone.
	err := f.service.VerifyEmail(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyEmailWrongKey(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "a@x.com")

	err := f.service.VerifyEmail(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyEmailExpiredKey(t *testing.T) {
	f := newServiceFixture(t, false)
	user := f.register(t, "a@x.com")
	key := *f.repo.users[user.ID].EmailVerificationKey

	f.clock.now = f.clock.now.Add(2 * time.Hour)
	err := f.service.VerifyEmail(context.Background(), key)
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestVerifyEmailAlreadyVerified(t *testing.T) {
	f := newServiceFixture(t, false)
	user := f.register(t, "a@x.com")
	key := *f.repo.users[user.ID].EmailVerificationKey

	// Mark verified but keep a stale key on the record.
	f.repo.users[user.ID].IsVerified = true

	err := f.service.VerifyEmail(context.Background(), key)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestSendVerificationEmailRegeneratesKey(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()
	user := f.register(t, "a@x.com")
	firstKey := *f.repo.users[user.ID].EmailVerificationKey

	f.clock.now = f.clock.now.Add(30 * time.Minute)
	require.NoError(t, f.service.SendVerificationEmail(ctx, "a@x.com"))

	stored := f.repo.users[user.ID]
	require.NotNil(t, stored.EmailVerificationKey)
	assert.NotEqual(t, firstKey, *stored.EmailVerificationKey, "new request must invalidate the prior key")
	assert.Equal(t, f.clock.now.Add(time.Hour), *stored.EmailVerificationExpiry)
	assert.Len(t, f.mailer.verifications, 2)

	// The overwritten key no longer verifies.
	err := f.service.VerifyEmail(ctx, firstKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendVerificationEmailAlreadyVerified(t *testing.T) {
	f := newServiceFixture(t, false)
	user := f.register(t, "a@x.com")
	f.repo.users[user.ID].IsVerified = true

	err := f.service.SendVerificationEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestSendVerificationEmailUnknownUser(t *testing.T) {
	f := newServiceFixture(t, false)
	err := f.service.SendVerificationEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// PASSWORD RESET
// ============================================================================

func TestForgotAndResetPassword(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()
	user := f.register(t, "a@x.com")

	require.NoError(t, f.service.ForgotPassword(ctx, "a@x.com"))
	require.Len(t, f.mailer.resets, 1)
	stored := f.repo.users[user.ID]
	require.NotNil(t, stored.ResetPasswordKey)
	key := *stored.ResetPasswordKey
	assert.Contains(t, f.mailer.resets[0].data.Link, key)

	require.NoError(t, f.service.ResetPassword(ctx, key, "NewSecret9!"))

	stored = f.repo.users[user.ID]
	assert.Nil(t, stored.ResetPasswordKey, "consumed key must be cleared")
	assert.Nil(t, stored.ResetPasswordExpiry)

	// Old password no longer works, new one does.
	_, err := f.service.Login(ctx, "a@x.com", "Abcdef1!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.service.Login(ctx, "a@x.com", "NewSecret9!")
	assert.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newServiceFixture(t, false)
	err := f.service.ForgotPassword(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetPasswordExpiredKey(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()
	user := f.register(t, "a@x.com")

	require.NoError(t, f.service.ForgotPassword(ctx, "a@x.com"))
	key := *f.repo.users[user.ID].ResetPasswordKey

	f.clock.now = f.clock.now.Add(2 * time.Hour)
	err := f.service.ResetPassword(ctx, key, "NewSecret9!")
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestResetPasswordUnknownKey(t *testing.T) {
	f := newServiceFixture(t, false)
	err := f.service.ResetPassword(context.Background(), "no-such-key", "NewSecret9!")
	assert.ErrorIs(t, err, ErrNotFound)
}
