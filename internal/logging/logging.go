// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Options selects level and handler. Format is text, json or auto; auto
// picks text for a terminal and json otherwise.
type Options struct {
	Level   string
	Format  string
	Verbose bool
	Output  io.Writer
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, cgerr.Wrapf(err, cgerr.CodeConfigValidateInvalidValue, "unknown log level %q", s)
	}
	return l, nil
}

// New returns a logger for opts. Verbose forces debug.
func New(opts Options) (*slog.Logger, error) {
	level := slog.LevelInfo
	if opts.Level != "" {
		l, err := ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	case "auto":
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
		}
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	default:
		return nil, cgerr.Errorf(cgerr.CodeConfigValidateInvalidValue, "unknown log format %q", opts.Format)
	}
}
