package results_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/scanviz/merge-results/internal/results"
	"github.com/scanviz/merge-results/internal/testutils"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path string

		want    results.File
		wantErr error
	}{
		"Valid Result":           {path: "nuclei.json", want: results.File{Path: "nuclei.json", Name: "nuclei.json"}},
		"Valid Result with Path": {path: "/some/dir/zap.json", want: results.File{Path: "/some/dir/zap.json", Name: "zap.json"}},
		"Extension Only":         {path: ".json", want: results.File{Path: ".json", Name: ".json"}},

		"Alt Extension":            {path: "notes.txt", wantErr: results.ErrInvalidExt},
		"Upper Case Extension":     {path: "nuclei.JSON", wantErr: results.ErrInvalidExt},
		"Extension Not Suffix":     {path: "nuclei.json.bak", wantErr: results.ErrInvalidExt},
		"Extension Without Dot":    {path: "nucleijson", wantErr: results.ErrInvalidExt},
		"Directory-like Extension": {path: "/some/dir.json/file", wantErr: results.ErrInvalidExt},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := results.New(tc.path)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err, "got an unexpected error")
			require.Equal(t, tc.want, got, "New should return a new result file object")
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		files       []string
		subDir      string
		subDirFiles []string
		invalidDir  bool

		want    []string
		wantErr bool
	}{
		"Empty Directory":          {want: []string{}},
		"Files in subDir":          {files: []string{"a.json"}, subDir: "subdir", subDirFiles: []string{"b.json"}, want: []string{"a.json"}},
		"Directory with extension": {files: []string{"a.json"}, subDir: "dir.json", subDirFiles: []string{"b.json"}, want: []string{"a.json"}},
		"Invalid File Extension":   {files: []string{"notes.txt", "nuclei.JSON"}, want: []string{}},
		"Sorted by name":           {files: []string{"zap.json", "nuclei.json", "B.json", "a.json"}, want: []string{"B.json", "a.json", "nuclei.json", "zap.json"}},
		"Mix of Valid and Invalid": {files: []string{"zap.json", "notes.txt", "nuclei.json", "README"}, want: []string{"nuclei.json", "zap.json"}},

		"Invalid Dir": {invalidDir: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := setupDir(t, tc.files, tc.subDir, tc.subDirFiles)
			if tc.invalidDir {
				dir = filepath.Join(dir, "invalid dir")
			}

			files, err := results.List(dir)
			if tc.wantErr {
				require.Error(t, err, "expected an error but got none")
				return
			}
			require.NoError(t, err, "got an unexpected error")

			got := make([]string, 0, len(files))
			for _, f := range files {
				require.Equal(t, filepath.Join(dir, f.Name), f.Path, "Path should be the file name joined to the directory")
				got = append(got, f.Name)
			}
			require.Equal(t, tc.want, got, "List should return the result files in lexical order")
		})
	}
}

func TestListFollowsSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on Windows")
	}

	dir := setupDir(t, []string{"a.json"}, "target", nil)
	require.NoError(t, os.Symlink(filepath.Join(dir, "target"), filepath.Join(dir, "linked.json")), "Setup: could not create directory symlink")
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")), "Setup: could not create file symlink")

	files, err := results.List(dir)
	require.NoError(t, err, "List should not fail on symlinks")

	got := make([]string, 0, len(files))
	for _, f := range files {
		got = append(got, f.Name)
	}
	require.Equal(t, []string{"a.json", "b.json"}, got, "List should skip symlinked directories and keep symlinked files")
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data string

		want          results.Object
		wantErr       bool
		wantNotObject bool
	}{
		"Empty object":   {data: `{}`, want: results.Object{}},
		"Single scanner": {data: `{"nuclei": {"x": 1}}`, want: results.Object{{Scanner: "nuclei", Payload: json.RawMessage(`{"x": 1}`)}}},
		"Keeps document order": {
			data: `{"zap": [1, 2], "nuclei": "ok", "trivy": null}`,
			want: results.Object{
				{Scanner: "zap", Payload: json.RawMessage(`[1, 2]`)},
				{Scanner: "nuclei", Payload: json.RawMessage(`"ok"`)},
				{Scanner: "trivy", Payload: json.RawMessage(`null`)},
			},
		},
		"Keeps repeated keys": {
			data: `{"nuclei": 1, "nuclei": 2}`,
			want: results.Object{
				{Scanner: "nuclei", Payload: json.RawMessage(`1`)},
				{Scanner: "nuclei", Payload: json.RawMessage(`2`)},
			},
		},
		"Surrounding whitespace": {data: "\n  {\"a\": true}\n\n", want: results.Object{{Scanner: "a", Payload: json.RawMessage(`true`)}}},

		// Error cases
		"Empty data":          {data: ``, wantErr: true},
		"Truncated object":    {data: `{"nuclei": {"x": 1}`, wantErr: true},
		"Missing colon":       {data: `{"nuclei" 1}`, wantErr: true},
		"Non string key":      {data: `{1: 2}`, wantErr: true},
		"Trailing garbage":    {data: `{"a": 1} x`, wantErr: true},
		"Two documents":       {data: `{"a": 1}{"b": 2}`, wantErr: true},
		"Invalid payload":     {data: `{"a": tru}`, wantErr: true},
		"Top-level array":     {data: `[{"a": 1}]`, wantErr: true, wantNotObject: true},
		"Top-level string":    {data: `"nuclei"`, wantErr: true, wantNotObject: true},
		"Top-level null":      {data: `null`, wantErr: true, wantNotObject: true},
		"Plain text contents": {data: `some notes`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := results.Parse([]byte(tc.data))
			if tc.wantErr {
				require.ErrorIs(t, err, results.ErrInvalidResult, "Parse should return an invalid result error")
				if tc.wantNotObject {
					require.ErrorIs(t, err, results.ErrNotObject, "Parse should flag non object documents")
				}
				return
			}
			require.NoError(t, err, "got an unexpected error")
			require.Equal(t, tc.want, got, "Parse should return the scanner entries in document order")
		})
	}
}

func TestRead(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content    *string
		noReadPerm bool

		wantEntries    int
		wantErr        bool
		wantInvalidErr bool
	}{
		"Valid file": {content: ptr(`{"nuclei": {"x": 1}, "zap": {}}`), wantEntries: 2},

		"Missing file":    {wantErr: true},
		"Invalid content": {content: ptr(`{"nuclei":`), wantErr: true, wantInvalidErr: true},
		"No read perms":   {content: ptr(`{}`), noReadPerm: true, wantErr: testutils.IsUnixNonRoot()},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "result.json")
			if tc.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tc.content), 0600), "Setup: could not write result file")
			}
			if tc.noReadPerm {
				require.NoError(t, os.Chmod(path, 0000), "Setup: could not remove read permissions")
				t.Cleanup(func() { _ = os.Chmod(path, 0600) })
			}

			f, err := results.New(path)
			require.NoError(t, err, "Setup: could not create result file object")

			got, err := f.Read()
			if tc.wantErr {
				require.Error(t, err, "expected an error but got none")
				require.ErrorContains(t, err, path, "error should identify the offending file")
				if tc.wantInvalidErr {
					require.ErrorIs(t, err, results.ErrInvalidResult)
				}
				return
			}
			require.NoError(t, err, "got an unexpected error")
			require.Len(t, got, tc.wantEntries, "Read should return all scanner entries")
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

// setupDir creates a temporary directory with empty result objects in each named file.
func setupDir(t *testing.T, files []string, subDir string, subDirFiles []string) string {
	t.Helper()

	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("{}"), 0600), "Setup: could not write file")
	}

	if subDir == "" {
		return dir
	}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, subDir), 0700), "Setup: could not create subdirectory")
	for _, f := range subDirFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, subDir, f), []byte("{}"), 0600), "Setup: could not write file")
	}

	return dir
}
