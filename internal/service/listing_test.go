package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/models"
	"identity-service/internal/token"
)

func TestListAccounts(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	ctx := context.Background()

	accounts, err := h.svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	registerAndVerify(t, h)

	d := draft()
	d.Email = "bob@gmail.com"
	d.FirstName = "Bob"
	_, err = h.svc.Register(ctx, d)
	require.NoError(t, err)

	accounts, err = h.svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	emails := []string{accounts[0].Email, accounts[1].Email}
	assert.Contains(t, emails, "alice@gmail.com")
	assert.Contains(t, emails, "bob@gmail.com")
	for _, account := range accounts {
		assert.NotEmpty(t, account.PasswordHash, "listing should carry the stored record")
	}
}

func TestMe_EchoesClaims(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	claims := &token.Claims{
		ID:        7,
		FirstName: "Alice",
		Email:     "alice@gmail.com",
		Role:      models.RoleUser,
		Status:    models.StatusActive,
	}
	got := h.svc.Me(claims)
	require.NotNil(t, got)
	assert.Equal(t, claims, got)
}
