package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. It is usable before Init and writes JSON.
var Log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures Log for the environment
func Init(isDev bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	if isDev {
		Log = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	} else {
		Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	Log = Log.Level(lvl)
}

// IsDev reports whether ENV selects a development environment
func IsDev(env string) bool {
	return env == "" || env == "dev" || env == "development"
}
