package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/webserver"
)

// fakeVhostAdapter records calls and can fail on demand. onWrite runs
// after a successful write, before WriteVhost returns.
type fakeVhostAdapter struct {
	writeErr  error
	removeErr error
	onWrite   func()

	writes  []webserver.VhostConfig
	removes []interfaces.Domain
}

func (f *fakeVhostAdapter) WriteVhost(_ context.Context, cfg webserver.VhostConfig) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, cfg)
	if f.onWrite != nil {
		f.onWrite()
	}
	return nil
}

func (f *fakeVhostAdapter) RemoveVhost(_ context.Context, domain interfaces.Domain, _ int) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removes = append(f.removes, domain)
	return nil
}

func mustDomain(t *testing.T, raw string) interfaces.Domain {
	t.Helper()
	d, err := interfaces.NewDomain(raw)
	require.NoError(t, err)
	return d
}

func TestCreateVirtualHost(t *testing.T) {
	s := testStore(t)
	adapter := &fakeVhostAdapter{}

	record, err := s.CreateVirtualHost(context.Background(), adapter, NewVirtualHost{
		Domain:        mustDomain(t, "example.com"),
		DocumentRoot:  "/home/example/public_html",
		UserID:        1,
		LinuxUsername: interfaces.Username("example"),
	})
	require.NoError(t, err)

	assert.Equal(t, "example.com", record.Domain)
	require.Len(t, adapter.writes, 1)
	assert.Equal(t, "/home/example/public_html", adapter.writes[0].DocumentRoot)
	assert.Empty(t, adapter.removes)
}

func TestCreateVirtualHostDuplicateSkipsWebserver(t *testing.T) {
	s := testStore(t)
	adapter := &fakeVhostAdapter{}

	req := NewVirtualHost{
		Domain:        mustDomain(t, "example.com"),
		DocumentRoot:  "/home/example/public_html",
		UserID:        1,
		LinuxUsername: interfaces.Username("example"),
	}
	_, err := s.CreateVirtualHost(context.Background(), adapter, req)
	require.NoError(t, err)

	_, err = s.CreateVirtualHost(context.Background(), adapter, req)
	var conflictErr *interfaces.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	// The duplicate was caught before any external side effect.
	assert.Len(t, adapter.writes, 1)
	assert.Empty(t, adapter.removes)
}

// TestCreateVirtualHostCompensatesOnInsertRace covers the window where a
// competing creation lands between the duplicate pre-check and the
// insert: the written configuration must be removed again.
func TestCreateVirtualHostCompensatesOnInsertRace(t *testing.T) {
	s := testStore(t)

	adapter := &fakeVhostAdapter{}
	adapter.onWrite = func() {
		// Simulate a concurrent creation winning the insert.
		require.NoError(t, s.db.Create(&VirtualHost{
			Domain:        "example.com",
			DocumentRoot:  "/home/other/public_html",
			UserID:        2,
			LinuxUsername: "other",
		}).Error)
	}

	_, err := s.CreateVirtualHost(context.Background(), adapter, NewVirtualHost{
		Domain:        mustDomain(t, "example.com"),
		DocumentRoot:  "/home/example/public_html",
		UserID:        1,
		LinuxUsername: interfaces.Username("example"),
	})
	var conflictErr *interfaces.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	// The external configuration written by the loser was rolled back.
	require.Len(t, adapter.removes, 1)
	assert.Equal(t, "example.com", adapter.removes[0].String())
}

func TestDeleteVirtualHostKeepsRowOnExternalFailure(t *testing.T) {
	s := testStore(t)
	adapter := &fakeVhostAdapter{}

	domain := mustDomain(t, "example.com")
	_, err := s.CreateVirtualHost(context.Background(), adapter, NewVirtualHost{
		Domain:        domain,
		DocumentRoot:  "/home/example/public_html",
		UserID:        1,
		LinuxUsername: interfaces.Username("example"),
	})
	require.NoError(t, err)

	adapter.removeErr = &interfaces.ExternalToolError{Tool: "apachectl", Err: assert.AnError}
	err = s.DeleteVirtualHost(context.Background(), adapter, domain)
	require.Error(t, err)

	// The record survives while its configuration still exists.
	_, err = s.GetVirtualHost(domain)
	require.NoError(t, err)

	adapter.removeErr = nil
	require.NoError(t, s.DeleteVirtualHost(context.Background(), adapter, domain))

	_, err = s.GetVirtualHost(domain)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDeleteVirtualHostCascadesMailRows(t *testing.T) {
	s := testStore(t)
	adapter := &fakeVhostAdapter{}

	domain := mustDomain(t, "example.com")
	vh, err := s.CreateVirtualHost(context.Background(), adapter, NewVirtualHost{
		Domain:        domain,
		DocumentRoot:  "/home/example/public_html",
		UserID:        1,
		LinuxUsername: interfaces.Username("example"),
	})
	require.NoError(t, err)

	md, err := s.EnsureEmailDomain(vh.ID, domain)
	require.NoError(t, err)
	_, err = s.UpsertEmailAccount(md.ID, "info", 100, "pv1.token")
	require.NoError(t, err)

	require.NoError(t, s.DeleteVirtualHost(context.Background(), adapter, domain))

	var accounts int64
	require.NoError(t, s.db.Model(&EmailAccount{}).Count(&accounts).Error)
	assert.Zero(t, accounts)
	var domains int64
	require.NoError(t, s.db.Model(&EmailDomain{}).Count(&domains).Error)
	assert.Zero(t, domains)
}
