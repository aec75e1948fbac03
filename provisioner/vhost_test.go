package provisioner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/store"
)

func testVirtualHost(t *testing.T) (*VirtualHost, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	account := NewLinuxAccount(&scriptRunner{}, discardLogger(), "/home", "")
	return NewVirtualHost(s, nopAdapter{}, account, discardLogger()), s
}

func TestVirtualHostProvision(t *testing.T) {
	p, s := testVirtualHost(t)
	req := baseRequest()

	msg, err := p.Provision(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, msg, "created")

	vhost, err := s.GetVirtualHost(req.Domain)
	require.NoError(t, err)
	assert.Equal(t, "/home/example/public_html", vhost.DocumentRoot)
	assert.Equal(t, req.UserID, vhost.UserID)
}

func TestVirtualHostProvisionIdempotent(t *testing.T) {
	p, _ := testVirtualHost(t)
	req := baseRequest()

	_, err := p.Provision(context.Background(), req)
	require.NoError(t, err)

	msg, err := p.Provision(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, msg, "already present")
}

func TestVirtualHostProvisionConflictAcrossUsers(t *testing.T) {
	p, _ := testVirtualHost(t)

	_, err := p.Provision(context.Background(), baseRequest())
	require.NoError(t, err)

	other := baseRequest()
	other.UserID = 2
	other.Username = interfaces.Username("other")

	_, err = p.Provision(context.Background(), other)
	var cerr *interfaces.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "virtual host", cerr.Resource)
}

func TestVirtualHostDeprovision(t *testing.T) {
	p, s := testVirtualHost(t)
	req := baseRequest()

	_, err := p.Provision(context.Background(), req)
	require.NoError(t, err)

	msg, err := p.Deprovision(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, msg, "removed")

	_, err = s.GetVirtualHost(req.Domain)
	require.ErrorIs(t, err, interfaces.ErrNotFound)

	msg, err = p.Deprovision(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, msg, "already absent")
}
