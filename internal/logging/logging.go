// Package logging sets up the process wide slog logger: colored output on the
// terminal and a plain text copy in a log file.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type Options struct {
	// Level applies to both outputs.
	Level slog.Level
	// FilePath is truncated on every start. Empty disables the file output.
	FilePath string
	// Stdout defaults to os.Stdout.
	Stdout *os.File
}

// Setup installs the default logger and returns a closer for the log file.
func Setup(opts Options) (io.Closer, error) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	handlers := []slog.Handler{
		tint.NewHandler(stdout, &tint.Options{
			Level:      opts.Level,
			TimeFormat: timeFormat,
			NoColor:    !isatty.IsTerminal(stdout.Fd()),
		}),
	}

	closer := io.Closer(nopCloser{})
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}

		lines := newLineWriter(file)
		handlers = append(handlers, newFileHandler(lines, opts.Level))
		closer = closerFunc(func() error {
			return errors.Join(lines.Close(), file.Close())
		})
	}

	slog.SetDefault(slog.New(newFanoutHandler(handlers...)))
	return closer, nil
}

// newFileHandler drops the record time; lineWriter stamps each line instead.
func newFileHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
