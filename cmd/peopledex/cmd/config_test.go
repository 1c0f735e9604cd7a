package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateUserConfig points the user config at a temp directory so tests
// never touch the real one.
func isolateUserConfig(t *testing.T) string {
	t.Helper()
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	return filepath.Join(configHome, "peopledex", "config.yaml")
}

func TestConfigPathCmd(t *testing.T) {
	// Given: an isolated user config location
	wantPath := isolateUserConfig(t)

	cmd := newConfigPathCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	// When: printing the config path
	err := cmd.Execute()

	// Then: it matches the XDG location
	require.NoError(t, err)
	assert.Equal(t, wantPath, strings.TrimSpace(buf.String()))
}

func TestConfigInitCmd_CreatesUserConfig(t *testing.T) {
	// Given: no user config exists
	wantPath := isolateUserConfig(t)

	cmd := newConfigInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// When: running config init
	err := cmd.Execute()

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Created user configuration")

	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "embeddings:")
	assert.Contains(t, string(data), "summary:")
}

func TestConfigInitCmd_ExistingConfigWithoutForce(t *testing.T) {
	// Given: a user config already exists
	isolateUserConfig(t)

	first := newConfigInitCmd()
	first.SetOut(&bytes.Buffer{})
	first.SetArgs([]string{})
	require.NoError(t, first.Execute())

	// When: running config init again without --force
	second := newConfigInitCmd()
	buf := &bytes.Buffer{}
	second.SetOut(buf)
	second.SetArgs([]string{})
	err := second.Execute()

	// Then: it warns instead of overwriting
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "already exists")
}

func TestConfigInitCmd_ProjectConfig(t *testing.T) {
	// Given: a temp project directory
	isolateUserConfig(t)
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	cmd := newConfigInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--project"})

	// When: running config init --project
	err := cmd.Execute()

	// Then: .peopledex.yaml is created in the project
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Created project configuration")

	data, err := os.ReadFile(filepath.Join(tmpDir, ".peopledex.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "storage:")
	assert.Contains(t, string(data), "corpus_path:")
}

func TestConfigShowCmd_Defaults(t *testing.T) {
	// Given: no config files anywhere
	isolateUserConfig(t)

	cmd := newConfigShowCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--source", "defaults"})

	// When: showing hardcoded defaults
	err := cmd.Execute()

	// Then: the YAML covers every section
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "defaults (hardcoded)")
	for _, section := range []string{"storage:", "search:", "embeddings:", "summary:", "server:"} {
		assert.Contains(t, output, section)
	}
}

func TestConfigShowCmd_InvalidSource(t *testing.T) {
	// Given: an invalid --source value
	isolateUserConfig(t)

	cmd := newConfigShowCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--source", "bogus"})

	// When: executing
	err := cmd.Execute()

	// Then: the command fails with a helpful message
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}
