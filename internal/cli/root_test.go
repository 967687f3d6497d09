package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "qplan", cmd.Use)
	assert.Contains(t, cmd.Long, "column map")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "explain", "run", "phases", "test"}

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

	dialectFlag := cmd.PersistentFlags().Lookup("dialect")
	require.NotNil(t, dialectFlag)
	assert.Equal(t, "sqlserver", dialectFlag.DefValue)

	for _, name := range []string{"dialect-version", "dialect-config", "parameterize-limits"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"phases", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestResolveDialect(t *testing.T) {
	opts := &RootOptions{Dialect: "sqlserver", DialectVersion: 8, ParameterizeLimits: true}
	d, err := opts.resolveDialect()
	require.NoError(t, err)
	assert.Equal(t, "sqlserver/8", d.String())
	assert.True(t, d.ParameterizeLimits)

	opts = &RootOptions{Dialect: "oracle"}
	_, err = opts.resolveDialect()
	require.Error(t, err)
	assert.Equal(t, ErrCodeDialect, ErrorCode(err))

	opts = &RootOptions{Dialect: "sqlite", DialectConfig: "testdata/missing.yaml"}
	_, err = opts.resolveDialect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read dialect config")
}
