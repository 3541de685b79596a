package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticatorValidatesIssuedToken(t *testing.T) {
	auth := NewAuthenticator()
	auth.Issue("secret-token", time.Hour)

	require.True(t, auth.Validate("secret-token"))
	require.False(t, auth.Validate("wrong-token"))
	require.False(t, auth.Validate(""))
}

func TestAuthenticatorRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator()
	auth.Issue("secret-token", -time.Hour-tokenRefreshWindow-time.Minute)

	require.False(t, auth.Validate("secret-token"))
}

func TestAuthenticatorAcceptsTokenWithinRefreshWindow(t *testing.T) {
	auth := NewAuthenticator()
	auth.Issue("secret-token", -time.Minute) // just expired, within refresh window

	require.True(t, auth.Validate("secret-token"))
}

func TestAuthenticatorRevoke(t *testing.T) {
	auth := NewAuthenticator()
	auth.Issue("secret-token", time.Hour)
	auth.Revoke("secret-token")

	require.False(t, auth.Validate("secret-token"))
}

func TestAuthenticatorEmptyMeansDevMode(t *testing.T) {
	auth := NewAuthenticator()
	require.True(t, auth.Empty())

	auth.Issue("token", time.Hour)
	require.False(t, auth.Empty())
}

func TestConnectionBudgetEnforcesPerSourceLimit(t *testing.T) {
	budget := NewConnectionBudget(3)

	for i := 0; i < 3; i++ {
		require.True(t, budget.Allow("1.2.3.4"), "attempt %d should be allowed", i)
	}
	require.False(t, budget.Allow("1.2.3.4"), "4th attempt within the same minute should be rejected")

	// A distinct source IP has its own independent budget.
	require.True(t, budget.Allow("5.6.7.8"))
}
