// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default input and output paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "merge-results"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// ResultsExt is the extension of the scanner result files.
	ResultsExt = ".json"

	// EnvelopeKey is the name of the single top-level field of the aggregated document.
	EnvelopeKey = "recordedTests"

	// DefaultOutputName is the base name of the aggregated document.
	DefaultOutputName = "results.json"

	// DefaultResultsFolder is the folder holding the scanner results, relative to the executable directory.
	DefaultResultsFolder = "../../results"

	// DefaultAssetsFolder is the folder the visualizer reads its data from, relative to the executable directory.
	DefaultAssetsFolder = "../src/assets"
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultInputDir is the default directory to read scanner results from.
func GetDefaultInputDir(opts ...option) string {
	o := options{baseDir: executableDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Clean(filepath.Join(getBaseDir(o.baseDir), DefaultResultsFolder))
}

// GetDefaultOutputPath is the default path of the aggregated document.
func GetDefaultOutputPath(opts ...option) string {
	o := options{baseDir: executableDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Clean(filepath.Join(getBaseDir(o.baseDir), DefaultAssetsFolder, DefaultOutputName))
}

// executableDir returns the directory holding the running binary.
// Binaries built in the temporary directory, as go run does, resolve against the working directory instead.
func executableDir() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", err
	}
	return baseDirFor(filepath.Dir(p), os.TempDir(), os.Getwd)
}

// baseDirFor returns exeDir, or the working directory when exeDir is inside tempDir.
func baseDirFor(exeDir, tempDir string, getwd func() (string, error)) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(tempDir), filepath.Clean(exeDir))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return exeDir, nil
	}
	return getwd()
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error,
// and instead fall back to the current working directory.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return "."
	}
	return dir
}
