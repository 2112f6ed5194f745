package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(clock Clock) *Codec {
	return NewCodec(CodecConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshSecret: []byte("refresh-secret-for-tests"),
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "gatehouse-test",
	}, clock)
}

func TestCodecRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec := testCodec(clock)
	user := &User{ID: 42, Email: "a@x.com"}

	for _, kind := range []TokenKind{TokenAccess, TokenRefresh} {
		token, err := codec.Issue(user, kind)
		require.NoError(t, err)

		claims, err := codec.Verify(token, kind)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, "a@x.com", claims.Email)
	}
}

func TestCodecRejectsCrossKind(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec := testCodec(clock)
	user := &User{ID: 42, Email: "a@x.com"}

	accessToken, err := codec.Issue(user, TokenAccess)
	require.NoError(t, err)
	_, err = codec.Verify(accessToken, TokenRefresh)
	assert.ErrorIs(t, err, ErrTokenSignature)

	refreshToken, err := codec.Issue(user, TokenRefresh)
	require.NoError(t, err)
	_, err = codec.Verify(refreshToken, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestCodecExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec := testCodec(clock)
	user := &User{ID: 1, Email: "a@x.com"}

	token, err := codec.Issue(user, TokenAccess)
	require.NoError(t, err)

	clock.now = clock.now.Add(14 * time.Minute)
	_, err = codec.Verify(token, TokenAccess)
	require.NoError(t, err, "token must verify before expiry")

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = codec.Verify(token, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodecMalformedToken(t *testing.T) {
	codec := testCodec(&fakeClock{now: time.Now()})
	for _, token := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := codec.Verify(token, TokenAccess)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", token)
	}
}

func TestCodecMissingSecret(t *testing.T) {
	codec := NewCodec(CodecConfig{RefreshSecret: []byte("only-refresh")}, nil)
	user := &User{ID: 1, Email: "a@x.com"}

	_, err := codec.Issue(user, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenSigning)

	_, err = codec.Issue(user, TokenRefresh)
	assert.NoError(t, err)
}

func TestCodecUnknownKind(t *testing.T) {
	codec := testCodec(&fakeClock{now: time.Now()})
	_, err := codec.Issue(&User{ID: 1}, TokenKind("session"))
	assert.ErrorIs(t, err, ErrTokenSigning)
}

func TestCodecDefaultTTLs(t *testing.T) {
	codec := NewCodec(CodecConfig{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
	}, nil)
	assert.Equal(t, 15*time.Minute, codec.TTL(TokenAccess))
	assert.Equal(t, 7*24*time.Hour, codec.TTL(TokenRefresh))
}
