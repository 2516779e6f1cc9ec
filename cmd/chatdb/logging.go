package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// initLogger configures the global zerolog logger. With a log file set,
// everything goes there; otherwise logs hit stderr when console output
// is allowed and are discarded when the full-screen UI owns the
// terminal.
func initLogger(level, file string, console bool) error {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer
	switch {
	case file != "":
		if dir := filepath.Dir(file); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "failed to create log directory")
			}
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		w = f
	case console:
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		w = io.Discard
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
