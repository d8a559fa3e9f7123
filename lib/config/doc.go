// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the ticketd configuration file.
//
// Configuration is loaded from a single file specified by either the
// TICKETD_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no search path. YAML is the native
// format; .json and .jsonc files are accepted with comments and
// trailing commas stripped.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without its own section
// logs at info instead of debug.
//
// After loading, ${HOME}, ${TICKETD_DATA}, and ${VAR:-default}
// patterns are expanded in path fields. [Config.Validate] reports every
// problem at once.
package config
