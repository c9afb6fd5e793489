package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunValidateConfig_AllDocumentsValidReturnsNil(t *testing.T) {
	dir := t.TempDir()
	validateConfigDir = dir

	cmd := newValidateConfigCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runValidateConfig(cmd, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "instances: OK")
	require.Contains(t, out.String(), "server: OK")
}

func TestRunValidateConfig_InvalidDocumentReturnsError(t *testing.T) {
	dir := t.TempDir()
	validateConfigDir = dir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instances.json"), []byte("not json"), 0o644))

	cmd := newValidateConfigCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runValidateConfig(cmd, nil)
	require.Error(t, err)
	require.Contains(t, errOut.String(), "instances: INVALID")
}
