package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWithoutSubcommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		notWant string
	}{
		{"short version flag", []string{"-v"}, "refactord version dev", "Available commands"},
		{"long version flag", []string{"--version"}, "refactord version dev", "Available commands"},
		{"no flags", []string{}, "Available commands", "refactord version"},
	}
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		_ = rootCmd.Flags().Set("version", "false")
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, rootCmd.Flags().Set("version", "false"))
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)

			require.NoError(t, rootCmd.Execute())
			assert.Contains(t, out.String(), tt.want)
			assert.NotContains(t, out.String(), tt.notWant)
		})
	}
}
