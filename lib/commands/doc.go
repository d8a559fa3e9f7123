// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands implements the server-side handler for every
// reserved verb.
//
// [Set.Register] adds the handlers to a dispatch builder. The help and
// execute_script handlers need the finished pipeline, which does not
// exist until the registry is built, so [Set.Bind] attaches it
// afterwards:
//
//	set := commands.New(options)
//	builder := dispatch.NewBuilder()
//	set.Register(builder)
//	pipeline := dispatch.NewPipeline(builder.Build(), gate, logger, set.Observe)
//	set.Bind(pipeline)
//
// Handlers that mutate tickets pass the caller's resolved user id to
// the collection, which enforces ownership per ticket.
package commands
