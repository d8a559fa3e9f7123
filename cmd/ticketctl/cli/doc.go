// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind ticketctl.
//
// A [Command] owns a lazily built pflag.FlagSet, optional subcommands,
// and a Run function. [Command.Execute] dispatches on the first
// positional argument, parses flags, and suggests the closest command
// or flag name on a typo. [WriteJSON] and [ExitError] cover the two
// output conventions: machine-readable results and a non-zero exit
// without a redundant error line.
package cli
