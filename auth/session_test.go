package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	in := Session{UserID: "u1", Organization: "Acme Univ", Role: "writer"}
	tok, err := iss.Issue(in)
	require.NoError(t, err)

	out, err := iss.ParseHeader("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestIssuer_Rejects(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = iss.ParseHeader("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = iss.ParseHeader("u1")
	assert.ErrorIs(t, err, ErrMissingToken)

	other, _ := NewIssuer("other-secret", time.Hour)
	tok, err := other.Issue(Session{UserID: "u1"})
	require.NoError(t, err)
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := iss.Issue(Session{UserID: "u1"})
	require.NoError(t, err)
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_Access(t *testing.T) {
	assert.True(t, Session{UserID: "a"}.CanAccessOwner("a"))
	assert.False(t, Session{UserID: "a"}.CanAccessOwner("b"))
	assert.True(t, Session{UserID: "a", Role: RoleAdmin}.CanAccessOwner("b"))

	ctx := WithSession(context.Background(), Session{UserID: "a"})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", s.UserID)
}
