package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/testutil"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const (
	policyID = "ns/team/pay/1.0"
	routeID  = "lib/routes/out.xml"
)

// storeTree is a local store with one patched policy and one route.
func storeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"ns/team/pay/1.0/process/main.xml":       "<process/>",
		"ns/team/pay/1.0/1/process/main.xml":     "<process v1/>",
		"ns/team/pay/1.0/1/policy-metadata.json": `{"Status":"ACTIVE","CompileVersion":2,"Type":"DECISION_POLICY"}`,
		"ns/team/pay/1.0/1/notes.txt":            "ignored",
		"lib/routes/out.xml":                     "<route to=\"http://billing\"/>",
	})
	return root
}

// writeConfig writes a configuration file for a local store at root with
// extra YAML appended.
func writeConfig(t *testing.T, root, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configstore.yaml")
	content := "backend: local\nlocal:\n  root_dir: " + root + "\npolling:\n  enabled: false\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func rootOpts(configPath, format string) *RootOptions {
	return &RootOptions{Format: format, ConfigPath: configPath}
}
