package provisioner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/interfaces"
)

func TestLinuxAccountCreatesUser(t *testing.T) {
	runner := &scriptRunner{errs: map[string]error{"id": errors.New("no such user")}}
	p := NewLinuxAccount(runner, discardLogger(), "/home", "/bin/bash")

	msg, err := p.Provision(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Contains(t, msg, "created")

	adds := runner.callsTo("useradd")
	require.Len(t, adds, 1)
	assert.Equal(t, []string{
		"--create-home",
		"--home-dir", "/home/example",
		"--shell", "/bin/bash",
		"example",
	}, adds[0].args)
}

func TestLinuxAccountExistingUserReused(t *testing.T) {
	runner := &scriptRunner{}
	p := NewLinuxAccount(runner, discardLogger(), "", "")

	msg, err := p.Provision(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Contains(t, msg, "already present")

	assert.Empty(t, runner.callsTo("useradd"))
	// The password is still refreshed.
	assert.Len(t, runner.callsTo("chpasswd"), 1)
}

func TestLinuxAccountPasswordStaysOffArgv(t *testing.T) {
	runner := &scriptRunner{errs: map[string]error{"id": errors.New("no such user")}}
	p := NewLinuxAccount(runner, discardLogger(), "", "")

	_, err := p.Provision(context.Background(), baseRequest())
	require.NoError(t, err)

	passwd := runner.callsTo("chpasswd")
	require.Len(t, passwd, 1)
	assert.Equal(t, "example:s3cret\n", passwd[0].stdin)
	for _, c := range runner.calls {
		assert.NotContains(t, joinedCall(c), "s3cret")
	}
}

func TestLinuxAccountRequiresDecryptedPassword(t *testing.T) {
	p := NewLinuxAccount(&scriptRunner{}, discardLogger(), "", "")

	req := baseRequest()
	req.ServerPassword = ""
	_, err := p.Provision(context.Background(), req)
	var validationErr *interfaces.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestLinuxAccountToolFailure(t *testing.T) {
	runner := &scriptRunner{errs: map[string]error{
		"id":      errors.New("no such user"),
		"useradd": errors.New("exit status 1"),
	}}
	p := NewLinuxAccount(runner, discardLogger(), "", "")

	_, err := p.Provision(context.Background(), baseRequest())
	var toolErr *interfaces.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "useradd", toolErr.Tool)
}

func TestLinuxAccountDeprovision(t *testing.T) {
	runner := &scriptRunner{}
	p := NewLinuxAccount(runner, discardLogger(), "", "")

	msg, err := p.Deprovision(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Contains(t, msg, "removed")

	dels := runner.callsTo("userdel")
	require.Len(t, dels, 1)
	assert.Equal(t, []string{"--remove", "example"}, dels[0].args)
}

func TestLinuxAccountDeprovisionAbsentUser(t *testing.T) {
	runner := &scriptRunner{errs: map[string]error{"id": errors.New("no such user")}}
	p := NewLinuxAccount(runner, discardLogger(), "", "")

	msg, err := p.Deprovision(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Contains(t, msg, "already absent")
	assert.Empty(t, runner.callsTo("userdel"))
}
