// Package testutils provides helper functions for testing
package testutils

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FlagTestCase describes the expected shape of a cobra command flag.
type FlagTestCase struct {
	Name           string
	Short          string
	Default        string
	Dirname        bool
	Filename       bool
	PersistentFlag bool
}

// FlagTestHelper checks that cmd declares the flag described by tc.
func FlagTestHelper(t *testing.T, cmd *cobra.Command, tc FlagTestCase) {
	t.Helper()

	var flag *pflag.Flag
	if tc.PersistentFlag {
		flag = cmd.PersistentFlags().Lookup(tc.Name)
	} else {
		flag = cmd.Flags().Lookup(tc.Name)
	}
	require.NotNil(t, flag, "flag %q should be declared", tc.Name)

	assert.Equal(t, tc.Short, flag.Shorthand, "unexpected shorthand for flag %q", tc.Name)
	if tc.Default != "" {
		assert.Equal(t, tc.Default, flag.DefValue, "unexpected default for flag %q", tc.Name)
	}

	if tc.Dirname {
		assert.Equal(t, []string{}, flag.Annotations[cobra.BashCompSubdirsInDir], "flag %q should complete directories", tc.Name)
	} else {
		assert.Nil(t, flag.Annotations[cobra.BashCompSubdirsInDir], "flag %q should not complete directories", tc.Name)
	}

	if tc.Filename {
		assert.Contains(t, flag.Annotations, cobra.BashCompFilenameExt, "flag %q should complete file names", tc.Name)
	} else {
		assert.NotContains(t, flag.Annotations, cobra.BashCompFilenameExt, "flag %q should not complete file names", tc.Name)
	}
}
