package webserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/interfaces"
)

type fakeRunner struct {
	commands [][]string
	runErr   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.commands = append(f.commands, append([]string{name}, args...))
	if f.runErr != nil {
		return "", f.runErr
	}
	return "", nil
}

func (f *fakeRunner) RunWithStdin(ctx context.Context, _, name string, args ...string) (string, error) {
	return f.Run(ctx, name, args...)
}

func (f *fakeRunner) LookPath(string) bool { return true }

func testAdapter(t *testing.T, runner *fakeRunner) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(Options{
		ConfDir:   filepath.Join(t.TempDir(), "sites-enabled"),
		ReloadCmd: []string{"apachectl", "graceful"},
	}, runner, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return adapter
}

func TestWriteVhost(t *testing.T) {
	runner := &fakeRunner{}
	adapter := testAdapter(t, runner)

	cfg := VhostConfig{
		Domain:       interfaces.Domain("example.com"),
		DocumentRoot: "/home/example/public_html",
		Username:     interfaces.Username("example"),
	}
	require.NoError(t, adapter.WriteVhost(context.Background(), cfg))

	assert.True(t, adapter.Exists(cfg.Domain, 0))

	data, err := os.ReadFile(adapter.confPath(cfg.Domain, 0))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "ServerName example.com")
	assert.Contains(t, content, "DocumentRoot /home/example/public_html")
	assert.Contains(t, content, "SuexecUserGroup example example")

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"apachectl", "graceful"}, runner.commands[0])
}

func TestWriteVhostIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	adapter := testAdapter(t, runner)

	cfg := VhostConfig{
		Domain:       interfaces.Domain("example.com"),
		DocumentRoot: "/home/example/public_html",
		Username:     interfaces.Username("example"),
	}
	require.NoError(t, adapter.WriteVhost(context.Background(), cfg))
	require.NoError(t, adapter.WriteVhost(context.Background(), cfg))
	assert.True(t, adapter.Exists(cfg.Domain, 0))
}

func TestSlotNaming(t *testing.T) {
	runner := &fakeRunner{}
	adapter := testAdapter(t, runner)

	domain := interfaces.Domain("example.com")
	assert.Equal(t, "example.com.conf", filepath.Base(adapter.confPath(domain, 0)))
	assert.Equal(t, "example.com-2.conf", filepath.Base(adapter.confPath(domain, 2)))
}

func TestWriteVhostValidation(t *testing.T) {
	runner := &fakeRunner{}
	adapter := testAdapter(t, runner)

	err := adapter.WriteVhost(context.Background(), VhostConfig{
		Domain:       interfaces.Domain("not a domain"),
		DocumentRoot: "/srv",
	})
	var validationErr *interfaces.ValidationError
	require.ErrorAs(t, err, &validationErr)

	err = adapter.WriteVhost(context.Background(), VhostConfig{
		Domain: interfaces.Domain("example.com"),
	})
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, runner.commands)
}

func TestRemoveVhost(t *testing.T) {
	runner := &fakeRunner{}
	adapter := testAdapter(t, runner)

	domain := interfaces.Domain("example.com")
	require.NoError(t, adapter.WriteVhost(context.Background(), VhostConfig{
		Domain:       domain,
		DocumentRoot: "/home/example/public_html",
		Username:     interfaces.Username("example"),
	}))

	require.NoError(t, adapter.RemoveVhost(context.Background(), domain, 0))
	assert.False(t, adapter.Exists(domain, 0))

	// Missing files are tolerated so removal stays idempotent.
	require.NoError(t, adapter.RemoveVhost(context.Background(), domain, 0))
}

func TestReloadFailureSurfaces(t *testing.T) {
	runner := &fakeRunner{runErr: assert.AnError}
	adapter := testAdapter(t, runner)

	err := adapter.WriteVhost(context.Background(), VhostConfig{
		Domain:       interfaces.Domain("example.com"),
		DocumentRoot: "/home/example/public_html",
		Username:     interfaces.Username("example"),
	})
	var toolErr *interfaces.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "apachectl", toolErr.Tool)
}

func TestOperatorTemplate(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "vhost.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte("server_name {{.Domain}};\nroot {{.DocumentRoot}};\n"), 0644))

	adapter, err := NewAdapter(Options{
		ConfDir:      filepath.Join(dir, "conf.d"),
		TemplatePath: tmplPath,
	}, &fakeRunner{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	domain := interfaces.Domain("example.com")
	require.NoError(t, adapter.WriteVhost(context.Background(), VhostConfig{
		Domain:       domain,
		DocumentRoot: "/srv/example",
		Username:     interfaces.Username("example"),
	}))

	data, err := os.ReadFile(adapter.confPath(domain, 0))
	require.NoError(t, err)
	assert.Equal(t, "server_name example.com;\nroot /srv/example;\n", string(data))
}
