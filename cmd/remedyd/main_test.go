package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountArg(t *testing.T) {
	n, err := countArg(nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = countArg([]string{"5"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = countArg([]string{"zero"}, 10)
	require.Error(t, err)

	_, err = countArg([]string{"0"}, 10)
	require.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "loop", "report", "stats", "dash"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}
