package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer, err := NewIssuer(Config{Secret: []byte("s3cret"), Issuer: "odyssey-mfa"})
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "odyssey-mfa", claims.Issuer)
	assert.Equal(t, fixed.Add(DefaultTTL).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, fixed.Unix(), claims.IssuedAt.Unix())
}

func TestParseRejectsExpired(t *testing.T) {
	issuer, err := NewIssuer(Config{Secret: []byte("s3cret"), TTL: time.Minute})
	require.NoError(t, err)
	start := time.Now()
	issuer.now = func() time.Time { return start }
	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecretAndAlgorithm(t *testing.T) {
	issuer, err := NewIssuer(Config{Secret: []byte("right")})
	require.NoError(t, err)
	other, err := NewIssuer(Config{Secret: []byte("wrong")})
	require.NoError(t, err)

	token, err := other.Issue("user-1")
	require.NoError(t, err)
	_, err = issuer.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := NewIssuer(Config{})
	require.Error(t, err)

	issuer, err := NewIssuer(Config{Secret: []byte("k")})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, issuer.TTL())

	_, err = issuer.Issue("")
	require.Error(t, err)
}
