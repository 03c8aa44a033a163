package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac/memstore"
)

func newCheckCLI(t *testing.T) *CheckCLI {
	t.Helper()
	ctx := t.Context()
	store := memstore.New()
	svc := rbac.NewService(store)
	require.NoError(t, svc.EnsureCatalog(ctx, rbac.FullCatalog()))
	editor, err := svc.CreateRole(ctx, "Editor", "")
	require.NoError(t, err)
	read, err := svc.GetPermission(ctx, "article.read")
	require.NoError(t, err)
	_, err = svc.GrantPermission(ctx, editor.ID, read.ID)
	require.NoError(t, err)
	store.PutActor(7, true, &editor.ID)
	store.PutActor(8, true, nil)

	cli, err := NewCheckCLI(svc, rbac.NewEvaluator(svc, nil))
	require.NoError(t, err)
	return cli
}

func TestCheckCommandAllowedJSON(t *testing.T) {
	cli := newCheckCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := cli.CheckCommand(t.Context(), CheckOptions{UserID: 7, Codename: "article.read", JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, CheckExitAllowed, code)
	require.Empty(t, stderr.String())

	var summary CheckSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.Allowed)
	require.Equal(t, "allow", summary.Outcome)
}

func TestCheckCommandDenied(t *testing.T) {
	cli := newCheckCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := cli.CheckCommand(t.Context(), CheckOptions{UserID: 7, Codename: "article.delete", Stdout: stdout, Stderr: stderr})
	require.Equal(t, CheckExitDenied, code)
	require.Contains(t, stdout.String(), "permission_denied")

	stdout.Reset()
	code = cli.CheckCommand(t.Context(), CheckOptions{UserID: 8, Codename: "article.read", Stdout: stdout, Stderr: stderr})
	require.Equal(t, CheckExitDenied, code)
	require.Contains(t, stdout.String(), "no_role_assigned")
}

func TestCheckCommandUnknownUserIsUnauthenticated(t *testing.T) {
	cli := newCheckCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := cli.CheckCommand(t.Context(), CheckOptions{UserID: 99, Codename: "article.read", Stdout: stdout, Stderr: stderr})
	require.Equal(t, CheckExitDenied, code)
	require.Contains(t, stdout.String(), "unauthenticated")
}

func TestCheckCommandInvalidInput(t *testing.T) {
	cli := newCheckCLI(t)
	stderr := new(bytes.Buffer)
	require.Equal(t, CheckExitError, cli.CheckCommand(t.Context(), CheckOptions{Codename: "article.read", Stderr: stderr}))
	require.Contains(t, stderr.String(), "--user")

	stderr.Reset()
	require.Equal(t, CheckExitError, cli.CheckCommand(t.Context(), CheckOptions{UserID: 7, Codename: "article", Stderr: stderr}))
	require.Contains(t, stderr.String(), "resource.action")
}

func TestMigrateCommandRejectsBadInput(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, MigrateCommand(MigrateOptions{Stderr: stderr}))
	require.Contains(t, stderr.String(), "required")
}
