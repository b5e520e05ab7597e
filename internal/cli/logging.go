package cli

import (
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/scanviz/merge-results/internal/constants"
)

// SetVerbosity sets the logging level for the default logger based on the verbose flag count.
//
// This function has the same behaviors as slog.SetLogLoggerLevel.
func SetVerbosity(level int) {
	slog.SetLogLoggerLevel(getLevel(level))
}

// initialLogger is the default logger of the process, before any JSON handler was installed.
var initialLogger = slog.Default()

// SetSlog sets the logging level and format for the default logger.
// JSON logs are written to w. Without jsonLogs, the initial text logger of the process is restored.
func SetSlog(w io.Writer, level int, jsonLogs bool) {
	slogLevel := getLevel(level)
	if jsonLogs {
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	if slog.Default() != initialLogger {
		// The JSON handler took over the log package output, which the initial logger writes through.
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
		slog.SetDefault(initialLogger)
	}
	SetVerbosity(level)
}

func getLevel(level int) slog.Level {
	switch level {
	case 0:
		return constants.DefaultLogLevel
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
