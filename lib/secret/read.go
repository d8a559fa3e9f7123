// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadFile reads a key file into a Buffer with surrounding whitespace
// trimmed. The intermediate heap copy is zeroed.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer Zero(data)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}
	return FromBytes(trimmed)
}

// ReadLine reads one line from r into a Buffer, without its line
// terminator. A final line without a newline is accepted.
func ReadLine(r io.Reader) (*Buffer, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	defer Zero(line)
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("secret: input is empty")
		}
		return nil, fmt.Errorf("secret: reading line: %w", err)
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil, errors.New("secret: input is empty")
	}
	return FromBytes(line)
}
