package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "parallax", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"--help"})
	require.NoError(t, err)

	assert.Contains(t, output, "two-view")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandSubcommands(t *testing.T) {
	subcommands := rootCmd.Commands()
	commandNames := make([]string, len(subcommands))
	for i, subcmd := range subcommands {
		commandNames[i] = subcmd.Name()
	}

	expectedCommands := []string{"match", "reconstruct", "version"}
	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"--invalid-flag"})
	require.Error(t, err)
	assert.Contains(t, output, "unknown flag")
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"version"})
	require.NoError(t, err)
	assert.Contains(t, output, "parallax")
	assert.Contains(t, output, "commit")
}

func TestRootCommandConfiguration(t *testing.T) {
	assert.True(t, rootCmd.HasSubCommands())
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

// executeCommandAndCaptureOutput runs the command with the given args and
// returns the combined output.
func executeCommandAndCaptureOutput(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return strings.TrimSpace(buf.String()), err
}
