package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedlog-backend/internal/bed"
)

func TestIssuer_IssueAndVerify(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, time.Minute)

	token, err := issuer.Issue("uid-1", "admin@example.org", bed.RoleAdmin)
	require.NoError(t, err)

	ident, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", ident.UID)
	assert.Equal(t, "admin@example.org", ident.Email)
	assert.Equal(t, bed.RoleAdmin, ident.Claim)
}

func TestIssuer_EmptyClaim(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, time.Minute)

	token, err := issuer.Issue("uid-1", "user@example.org", "")
	require.NoError(t, err)

	ident, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, bed.Role(""), ident.Claim)
}

func TestIssuer_Rejects(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, time.Minute)
	token, err := issuer.Issue("uid-1", "a@example.org", bed.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
		setup func()
	}{
		{name: "empty", token: func() string { return "" }},
		{name: "garbage", token: func() string { return "not-a-jwt" }},
		{name: "other secret", token: func() string {
			other := NewIssuer("different", time.Hour, time.Minute)
			tok, _ := other.Issue("uid-1", "a@example.org", bed.RoleAdmin)
			return tok
		}},
		{name: "expired", token: func() string {
			past := NewIssuer("secret", time.Hour, time.Minute)
			past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
			tok, _ := past.Issue("uid-1", "a@example.org", bed.RoleUser)
			return tok
		}},
		{name: "revoked", token: func() string {
			require.NoError(t, issuer.Revoke(token))
			return token
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token())
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssuer_ResetTokensAreSingleUse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, time.Minute)

	token := issuer.IssueReset("uid-7")
	uid, ok := issuer.ConsumeReset(token)
	require.True(t, ok)
	assert.Equal(t, "uid-7", uid)

	_, ok = issuer.ConsumeReset(token)
	assert.False(t, ok)

	_, ok = issuer.ConsumeReset("unknown")
	assert.False(t, ok)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
	assert.False(t, CheckPassword("", "hunter22"))
}
