// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/ticketd/lib/wire"
)

// scriptEntry is one command of a YAML script:
//
//	- command: add
//	  ticket: {name: concert, x: 1, y: 2, price: 40, passport: P-1, hair: GREEN}
//	- command: remove-by-id
//	  id: 3
//	- command: clear
//	  text: all
type scriptEntry struct {
	Command string        `yaml:"command"`
	Ticket  *ticketFields `yaml:"ticket"`
	ID      *int64        `yaml:"id"`
	Text    *string       `yaml:"text"`
}

// loadScript reads a script file and converts it into requests.
func loadScript(path string, now time.Time) ([]wire.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	batch, err := parseScript(data, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// parseScript decodes a YAML list of entries. Command names may use
// either the server's underscores or ticketctl's hyphens.
func parseScript(data []byte, now time.Time) ([]wire.Request, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var entries []scriptEntry
	if err := decoder.Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("script is empty")
		}
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("script is empty")
	}

	batch := make([]wire.Request, 0, len(entries))
	for i, entry := range entries {
		request, err := entry.request(now)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		batch = append(batch, request)
	}
	return batch, nil
}

func (e scriptEntry) request(now time.Time) (wire.Request, error) {
	command := strings.ReplaceAll(strings.TrimSpace(e.Command), "-", "_")
	if command == "" {
		return wire.Request{}, errors.New("command is required")
	}
	request := wire.Request{Success: true, Command: command}

	switch command {
	case wire.CommandAdd, wire.CommandUpdate, wire.CommandAddIfMin:
		if e.Ticket == nil {
			return wire.Request{}, fmt.Errorf("%s needs a ticket", command)
		}
		fields := *e.Ticket
		if command == wire.CommandUpdate {
			if e.ID == nil {
				return wire.Request{}, errors.New("update needs an id")
			}
			fields.ID = *e.ID
		}
		entry, err := fields.build(now)
		if err != nil {
			return wire.Request{}, err
		}
		request.Data = wire.TicketPayload(entry)
	case wire.CommandRemoveByID:
		if e.ID == nil {
			return wire.Request{}, errors.New("remove_by_id needs an id")
		}
		request.Data = wire.IntPayload(*e.ID)
	case wire.CommandClear:
		if e.Text != nil {
			request.Data = wire.StringPayload(*e.Text)
		}
	case wire.CommandExecuteScript, wire.CommandExit:
		return wire.Request{}, fmt.Errorf("%s is not allowed in a script", command)
	}
	return request, nil
}
