package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("unit-test-secret", time.Hour)

	signed, err := tokens.Issue("user-42")
	req.NoError(err)
	req.NotEmpty(signed)

	claims, err := tokens.Verify(signed)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("scrawl", claims.Issuer)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens := NewTokens("unit-test-secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := tokens.Verify(raw); err == nil {
			t.Errorf("Verify(%q) accepted a malformed token", raw)
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	signed, err := NewTokens("secret-one", time.Hour).Issue("user-1")
	req.NoError(err)

	_, err = NewTokens("secret-two", time.Hour).Verify(signed)
	req.Error(err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("unit-test-secret", time.Nanosecond)

	signed, err := tokens.Issue("user-1")
	req.NoError(err)

	time.Sleep(5 * time.Millisecond)

	_, err = tokens.Verify(signed)
	req.Error(err)
}

func TestVerifyRejectsMissingUserID(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("unit-test-secret", time.Hour)

	signed, err := tokens.Issue("")
	req.NoError(err)

	_, err = tokens.Verify(signed)
	req.Error(err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.NotEqual("correct horse battery staple", hash)

	req.True(ComparePassword(hash, "correct horse battery staple"))
	req.False(ComparePassword(hash, "wrong password"))
}
