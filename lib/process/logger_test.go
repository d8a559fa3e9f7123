// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"json", FormatJSON, false},
		{"text", FormatText, false},
		{"xml", "", true},
	}
	for _, test := range tests {
		got, err := ParseLogFormat(test.input)
		if (err != nil) != test.wantErr || got != test.want {
			t.Errorf("ParseLogFormat(%q) = %q, %v; want %q, error %v", test.input, got, err, test.want, test.wantErr)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var jsonOutput bytes.Buffer
	NewLogger(&jsonOutput, slog.LevelInfo, FormatJSON).Info("started", "workers", 4)
	var record map[string]any
	if err := json.Unmarshal(jsonOutput.Bytes(), &record); err != nil {
		t.Fatalf("JSON output %q does not parse: %v", jsonOutput.String(), err)
	}
	if record["msg"] != "started" || record["workers"] != float64(4) {
		t.Errorf("record = %v", record)
	}

	var textOutput bytes.Buffer
	NewLogger(&textOutput, slog.LevelInfo, FormatText).Info("started", "workers", 4)
	if !strings.Contains(textOutput.String(), "msg=started workers=4") {
		t.Errorf("text output = %q", textOutput.String())
	}
}

func TestNewLoggerAutoWithoutTerminal(t *testing.T) {
	var output bytes.Buffer
	NewLogger(&output, slog.LevelInfo, FormatAuto).Info("hello")
	if !strings.HasPrefix(output.String(), "{") {
		t.Errorf("auto format on a buffer = %q, want JSON", output.String())
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var output bytes.Buffer
	logger := NewLogger(&output, slog.LevelWarn, FormatJSON)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(output.String(), "hidden") || !strings.Contains(output.String(), "shown") {
		t.Errorf("output = %q", output.String())
	}
}
