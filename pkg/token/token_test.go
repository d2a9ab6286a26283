package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	s, err := NewSigner("secret")
	require.NoError(t, err)

	tok, err := s.Issue(42, "Ada")
	require.NoError(t, err)

	p, err := s.Verify(tok, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.GameID)
	assert.Equal(t, "Ada", p.Player)
	assert.NotEmpty(t, p.Nonce)

	_, err = s.Verify(tok, 43)
	assert.ErrorIs(t, err, ErrWrongGame)
}

func TestTokensAreUnique(t *testing.T) {
	s, _ := NewSigner("secret")
	a, _ := s.Issue(1, "Ada")
	b, _ := s.Issue(1, "Ada")
	assert.NotEqual(t, a, b)
}

func TestRejectsTampering(t *testing.T) {
	s, _ := NewSigner("secret")
	other, _ := NewSigner("")
	tok, _ := s.Issue(7, "Ada")

	_, err := other.Verify(tok, 7)
	assert.ErrorIs(t, err, ErrBadSignature)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	forged, _ := other.Issue(7, "Mallory")
	forgedParts := strings.Split(forged, ".")
	_, err = s.Verify(forgedParts[0]+"."+forgedParts[1]+"."+parts[2], 7)
	assert.ErrorIs(t, err, ErrBadSignature)

	for _, bad := range []string{"", "nodot", parts[0] + "." + parts[1], "!!!.!!!.!!!"} {
		_, err = s.Verify(bad, 7)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}

func TestExpiry(t *testing.T) {
	s, _ := NewSigner("secret")
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }
	tok, err := s.Issue(3, "Ada")
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(DefaultTTL + time.Minute) }
	_, err = s.Verify(tok, 3)
	assert.ErrorIs(t, err, ErrExpired)
}
