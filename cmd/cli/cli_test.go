package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"migrate"}, {"customer", "create"}, {"customer", "stats"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestCustomerCreate_RequiresEmail(t *testing.T) {
	_, err := execute(t, "customer", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestCustomerCreate_RejectsUnknownTier(t *testing.T) {
	_, err := execute(t, "customer", "create", "--email", "a@example.com", "--tier", "gold")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}

func TestMigrate_Flags(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "./migrations", cmd.Flags().Lookup("dir").DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("status"))
}
