// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Ticketctl is the command-line client for ticketd.
//
// Each subcommand maps to one server command:
//
//	ticketctl register --user alice
//	ticketctl add --user alice --name concert --x 1 --y 2 --price 40 \
//	    --passport P-1 --hair GREEN
//	ticketctl show --json
//	ticketctl execute-script batch.yaml
//
// The password is read from TICKETD_PASSWORD, or prompted for on the
// terminal when unset. TICKETD_USER and TICKETD_ADDRESS supply
// defaults for --user and --address.
package main
