// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// frameHeaderLength is the size of the big-endian uint32 length
// prefix in front of every envelope.
const frameHeaderLength = 4

// DefaultMaxFrameSize bounds a single envelope. Large enough for a
// "show" response over tens of thousands of tickets.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// ErrFrameTooLarge is returned when a frame header announces a
// payload above the reader's limit. The stream cannot be
// resynchronized afterwards.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes payload as one frame: [4-byte length][payload].
// Header and payload go out in a single Write so a frame is never
// interleaved with another writer's bytes at the syscall level.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > 0xFFFFFFFF {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, frameHeaderLength+len(payload))
	binary.BigEndian.PutUint32(frame[:frameHeaderLength], uint32(len(payload)))
	copy(frame[frameHeaderLength:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame and returns its payload. A clean
// end of stream before any header byte returns io.EOF unwrapped; a
// stream that ends mid-frame returns io.ErrUnexpectedEOF (wrapped).
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if maxSize > 0 && uint64(length) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, length, maxSize)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}

// WriteRequest encodes and frames a request.
func WriteRequest(w io.Writer, request Request) error {
	data, err := EncodeRequest(request)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// WriteResponse encodes and frames a response.
func WriteResponse(w io.Writer, response Response) error {
	data, err := EncodeResponse(response)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadResponse reads one frame and decodes it as a response.
func ReadResponse(r io.Reader, maxSize int) (Response, error) {
	data, err := ReadFrame(r, maxSize)
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(data)
}
