package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and stdin, returning stdout,
// stderr, and the command error.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "endog", cmd.Use)
	assert.Contains(t, cmd.Long, "tolerating")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"lines", "state", "ingest", "verify", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"journal", "backend", "tolerance"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestIngestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	ingestCmd, _, err := cmd.Find([]string{"ingest"})
	require.NoError(t, err)

	inputFlag := ingestCmd.Flags().Lookup("input")
	require.NotNil(t, inputFlag)
	assert.Equal(t, "i", inputFlag.Shorthand)
	assert.Equal(t, "-", inputFlag.DefValue)

	assert.NotNil(t, ingestCmd.Flags().Lookup("no-wait"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("metrics-listen"))
}

func TestInvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "a\n")

	_, _, err := execute(t, "", "lines", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, "", "state", "--journal", filepath.Join(dir, "j.log"), "--backend", "postgres")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal.backend")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "from-config.log")
	writeFile(t, journalPath, `{"delta":4,"key":"apples","time":"2024-05-01T12:00:00Z"}`+"\n")
	configPath := filepath.Join(dir, "endog.yaml")
	writeFile(t, configPath, "journal:\n  path: "+journalPath+"\nengine:\n  tolerance: 1s\n")

	out, _, err := execute(t, "", "state", "--config", configPath, "--format", "json")
	require.NoError(t, err)

	var res StateResult
	decodeData(t, out, &res)
	assert.Equal(t, journalPath, res.Journal)
	assert.Equal(t, int64(4), res.State["apples"])
}
