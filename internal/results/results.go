// Package results provides utility functions for discovering and reading scanner result files.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scanviz/merge-results/internal/constants"
	"github.com/ubuntu/decorate"
)

var (
	// ErrInvalidExt is returned when a file does not carry the scanner result extension.
	ErrInvalidExt = errors.New("invalid scanner result file extension")

	// ErrInvalidResult is returned when a scanner result file content can't be parsed.
	ErrInvalidResult = errors.New("invalid scanner result")

	// ErrNotObject is returned when a scanner result is valid JSON, but not a JSON object.
	ErrNotObject = errors.New("top-level value is not a JSON object")
)

// File represents a scanner result file.
type File struct {
	Path string // Path is the path to the result file.
	Name string // Name is the name of the result file, including extension.
}

// Entry is one scanner identifier and its result payload.
// The payload is kept as raw JSON and never interpreted.
type Entry struct {
	Scanner string
	Payload json.RawMessage
}

// Object is the parsed content of a scanner result file, in document order.
// A key repeated within the same document appears once per occurrence.
type Object []Entry

// New creates a new File object from a path.
// It does not access the file system.
func New(path string) (File, error) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, constants.ResultsExt) {
		return File{}, ErrInvalidExt
	}

	return File{Path: path, Name: name}, nil
}

// List returns all scanner result files in dir, sorted by file name.
// Does not traverse subdirectories.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list scanner results directory: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		f, err := New(path)
		if errors.Is(err, ErrInvalidExt) {
			slog.Debug("Skipping non-result file", "file", e.Name())
			continue
		}

		isDir, err := isDirectory(path, e)
		if err != nil {
			return nil, err
		}
		if isDir {
			slog.Debug("Skipping directory", "dir", e.Name())
			continue
		}

		files = append(files, f)
	}

	return files, nil
}

// Read reads and parses the scanner result file.
func (f File) Read() (obj Object, err error) {
	defer decorate.OnError(&err, "scanner result %q", f.Path)

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return Parse(data)
}

// Parse parses data as a JSON object, keeping its members in document order.
// The whole document must be a single JSON object.
func Parse(data []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, ErrNotObject)
	}

	obj := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
		}
		// Object keys are always decoded as strings.
		key, _ := tok.(string)

		var payload json.RawMessage
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("%w: scanner %q: %v", ErrInvalidResult, key, err)
		}
		obj = append(obj, Entry{Scanner: key, Payload: payload})
	}

	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after top-level object", ErrInvalidResult)
	}

	return obj, nil
}

// isDirectory reports whether the entry is a directory, following symlinks.
func isDirectory(path string, e fs.DirEntry) (bool, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir(), nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	return fi.IsDir(), nil
}
