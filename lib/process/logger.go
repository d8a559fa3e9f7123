// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	// FormatJSON writes one JSON object per record. Servers use it.
	FormatJSON LogFormat = "json"
	// FormatText writes logfmt-style lines.
	FormatText LogFormat = "text"
	// FormatAuto picks text when the output is a terminal and JSON
	// otherwise.
	FormatAuto LogFormat = "auto"
)

// ParseLogFormat accepts json, text, or auto (empty means auto).
func ParseLogFormat(value string) (LogFormat, error) {
	switch LogFormat(value) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSON, FormatText:
		return LogFormat(value), nil
	default:
		return "", fmt.Errorf("unknown log format %q (want json, text, or auto)", value)
	}
}

// NewLogger builds a logger writing to output at level.
func NewLogger(output io.Writer, level slog.Leveler, format LogFormat) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if format == FormatAuto {
		format = FormatJSON
		if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = FormatText
		}
	}
	if format == FormatText {
		return slog.New(slog.NewTextHandler(output, options))
	}
	return slog.New(slog.NewJSONHandler(output, options))
}
