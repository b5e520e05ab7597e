// TiCS: disabled // Test helpers.

package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv is the environment variable to set to refresh golden files.
const UpdateGoldenEnv = "TESTS_UPDATE_GOLDEN"

// GoldenPath returns the golden file path for the current test, relative to the package directory.
func GoldenPath(t *testing.T) string {
	t.Helper()

	return filepath.Join("testdata", "golden", filepath.FromSlash(t.Name()))
}

// updateEnabled returns true if golden files should be refreshed from the test output.
func updateEnabled() bool {
	v := os.Getenv(UpdateGoldenEnv)
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

// LoadWithUpdateFromGolden loads the golden file for the current test, refreshing it with got first if requested.
// Windows line endings are normalized.
func LoadWithUpdateFromGolden(t *testing.T, got string) string {
	t.Helper()

	path := GoldenPath(t)
	if updateEnabled() {
		t.Logf("Updating golden file %s", path)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750), "Cannot create directory for updating golden files")
		require.NoError(t, os.WriteFile(path, []byte(got), 0600), "Cannot write golden file")
	}

	want, err := os.ReadFile(path)
	require.NoError(t, err, "Cannot load golden file %s, run with %s=1 to create it", path, UpdateGoldenEnv)

	return strings.ReplaceAll(string(want), "\r\n", "\n")
}

// LoadWithUpdateFromGoldenYAML is the YAML version of LoadWithUpdateFromGolden.
// It round-trips got through YAML so that the comparison is made between values of the same shape.
func LoadWithUpdateFromGoldenYAML[T any](t *testing.T, got T) T {
	t.Helper()

	data, err := yaml.Marshal(got)
	require.NoError(t, err, "Cannot serialize provided object")

	want := LoadWithUpdateFromGolden(t, string(data))

	var wantObj T
	require.NoError(t, yaml.Unmarshal([]byte(want), &wantObj), "Cannot deserialize golden file")
	return wantObj
}
