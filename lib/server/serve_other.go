// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package server

import "context"

// Serve closes the listener and returns ErrUnsupportedPlatform: the
// event loop is built on epoll.
func (s *Server) Serve(ctx context.Context) error {
	s.listener.Close()
	return ErrUnsupportedPlatform
}
