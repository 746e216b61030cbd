package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_generate(t *testing.T) {
	t.Run("default length", func(t *testing.T) {
		var out bytes.Buffer

		err := generate(&out, nil)

		require.NoError(t, err)
		key, err := hex.DecodeString(strings.TrimSpace(out.String()))
		require.NoError(t, err)
		require.Len(t, key, 32)
	})

	t.Run("custom length", func(t *testing.T) {
		var out bytes.Buffer

		err := generate(&out, []string{"--bytes", "64"})

		require.NoError(t, err)
		require.Len(t, strings.TrimSpace(out.String()), 128)
	})

	t.Run("keys differ", func(t *testing.T) {
		var first, second bytes.Buffer

		require.NoError(t, generate(&first, nil))
		require.NoError(t, generate(&second, nil))

		require.NotEqual(t, first.String(), second.String())
	})

	t.Run("too short", func(t *testing.T) {
		err := generate(&bytes.Buffer{}, []string{"-n", "8"})

		require.Error(t, err)
	})
}
