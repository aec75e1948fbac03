package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertEmailAccountRefreshesExistingRow(t *testing.T) {
	s := testStore(t)
	vhost, err := s.CreateVirtualHost(context.Background(), &fakeVhostAdapter{}, NewVirtualHost{
		Domain:        mustDomain(t, "example.com"),
		DocumentRoot:  "/home/example/public_html",
		UserID:        1,
		LinuxUsername: "example",
	})
	require.NoError(t, err)

	domain, err := s.EnsureEmailDomain(vhost.ID, mustDomain(t, "example.com"))
	require.NoError(t, err)

	first, err := s.UpsertEmailAccount(domain.ID, "info", 100, "token-one")
	require.NoError(t, err)
	assert.Equal(t, "token-one", first.PasswordToken)

	// A retried run after a password change must overwrite the stored
	// token, not keep the stale one.
	second, err := s.UpsertEmailAccount(domain.ID, "info", 250, "token-two")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "token-two", second.PasswordToken)
	assert.Equal(t, 250, second.QuotaMB)

	accounts, err := s.ListEmailAccounts(domain.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "token-two", accounts[0].PasswordToken)
	assert.Equal(t, 250, accounts[0].QuotaMB)
}
