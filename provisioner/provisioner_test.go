package provisioner

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/cryptoutils"
	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/store"
	"github.com/kingG4e/web-control-panel/vault"
	"github.com/kingG4e/web-control-panel/webserver"
)

type call struct {
	name  string
	args  []string
	stdin string
}

// scriptRunner fakes external tooling. errs maps a command name to the
// error its invocation returns; absent maps a name to "not installed".
type scriptRunner struct {
	errs    map[string]error
	outputs map[string]string
	absent  map[string]bool

	calls []call
}

func (r *scriptRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.RunWithStdin(ctx, "", name, args...)
}

func (r *scriptRunner) RunWithStdin(_ context.Context, stdin, name string, args ...string) (string, error) {
	r.calls = append(r.calls, call{name: name, args: args, stdin: stdin})
	if err := r.errs[name]; err != nil {
		return r.outputs[name], err
	}
	return r.outputs[name], nil
}

func (r *scriptRunner) LookPath(name string) bool {
	return !r.absent[name]
}

func (r *scriptRunner) callsTo(name string) []call {
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	key, err := cryptoutils.NewRandomKey()
	require.NoError(t, err)
	cv, err := vault.New(key)
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "panel.db"), cv, discardLogger())
	require.NoError(t, err)
	return s
}

func baseRequest() *interfaces.ProvisionRequest {
	return &interfaces.ProvisionRequest{
		RequestID:      1,
		PublicID:       "req-1",
		UserID:         1,
		Domain:         interfaces.Domain("example.com"),
		Username:       interfaces.Username("example"),
		ServerPassword: "s3cret",
		StorageQuotaMB: 500,
	}
}

// nopAdapter satisfies store.VhostAdapter for tests that only need the
// persisted side of the vhost transaction.
type nopAdapter struct{}

func (nopAdapter) WriteVhost(context.Context, webserver.VhostConfig) error   { return nil }
func (nopAdapter) RemoveVhost(context.Context, interfaces.Domain, int) error { return nil }

func joinedCall(c call) string {
	return c.name + " " + strings.Join(c.args, " ")
}
