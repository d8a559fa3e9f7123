// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ticketd/cmd/ticketctl/cli"
	"github.com/bureau-foundation/ticketd/lib/client"
	"github.com/bureau-foundation/ticketd/lib/ticket"
	"github.com/bureau-foundation/ticketd/lib/version"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "ticketctl",
		Description: "Ticketctl talks to a ticketd server and manages its shared ticket collection.",
		Subcommands: []*cli.Command{
			a.pingCommand(),
			a.registerCommand(),
			a.loginCommand(),
			a.serverHelpCommand(),
			a.infoCommand(),
			a.showCommand(),
			a.addCommand(),
			a.updateCommand(),
			a.removeByIDCommand(),
			a.clearCommand(),
			a.removeFirstCommand(),
			a.removeHeadCommand(),
			a.addIfMinCommand(),
			a.sumOfPriceCommand(),
			a.minByDiscountCommand(),
			a.maxByNameCommand(),
			a.historyCommand(),
			a.executeScriptCommand(),
			a.saveCommand(),
			a.exitCommand(),
			a.versionCommand(),
		},
	}
}

// simple builds a command that takes only the connection flags.
func (a *app) simple(name, summary string, authenticate bool, call func(ctx context.Context, c *client.Client, args []string) error) *cli.Command {
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Flags:   func() *pflag.FlagSet { return a.connectionFlags(name) },
		Run:     a.withClient(authenticate, call),
	}
}

func (a *app) pingCommand() *cli.Command {
	return a.simple("ping", "Check that the server answers", true, func(ctx context.Context, c *client.Client, _ []string) error {
		started := time.Now()
		if err := c.Ping(ctx); err != nil {
			return err
		}
		elapsed := time.Since(started)
		return a.emit(map[string]any{"address": c.Address(), "round_trip": elapsed.String()}, func(w io.Writer) {
			fmt.Fprintf(w, "pong from %s in %s\n", c.Address(), elapsed.Round(time.Microsecond))
		})
	})
}

func (a *app) registerCommand() *cli.Command {
	return a.simple("register", "Create an account", false, func(ctx context.Context, c *client.Client, _ []string) error {
		user, password, err := a.credentials()
		if err != nil {
			return err
		}
		id, err := c.Register(ctx, user, password)
		if err != nil {
			return err
		}
		return a.emit(map[string]any{"user": user, "id": id}, func(w io.Writer) {
			fmt.Fprintf(w, "registered %s (user id %d)\n", user, id)
		})
	})
}

func (a *app) loginCommand() *cli.Command {
	return a.simple("login", "Check credentials", false, func(ctx context.Context, c *client.Client, _ []string) error {
		user, password, err := a.credentials()
		if err != nil {
			return err
		}
		id, err := c.LoginAs(ctx, user, password)
		if err != nil {
			return err
		}
		return a.emit(map[string]any{"user": user, "id": id}, func(w io.Writer) {
			fmt.Fprintf(w, "logged in as %s (user id %d)\n", user, id)
		})
	})
}

// serverHelpCommand is named "commands" because --help belongs to the
// local command tree.
func (a *app) serverHelpCommand() *cli.Command {
	return a.simple("commands", "List the commands the server accepts", true, func(ctx context.Context, c *client.Client, _ []string) error {
		lines, err := c.Help(ctx)
		if err != nil {
			return err
		}
		return a.emit(lines, func(w io.Writer) { writeLines(w, lines) })
	})
}

func (a *app) infoCommand() *cli.Command {
	return a.simple("info", "Show collection metadata", true, func(ctx context.Context, c *client.Client, _ []string) error {
		info, err := c.Info(ctx)
		if err != nil {
			return err
		}
		return a.emit(map[string]string{"info": info}, func(w io.Writer) { fmt.Fprintln(w, info) })
	})
}

func (a *app) showCommand() *cli.Command {
	return a.simple("show", "List every ticket", true, func(ctx context.Context, c *client.Client, _ []string) error {
		tickets, err := c.Show(ctx)
		if err != nil {
			return err
		}
		return a.emit(tickets, func(w io.Writer) { writeTickets(w, tickets) })
	})
}

// ticketCommand builds add, update, and add-if-min, which all take the
// ticket flags.
func (a *app) ticketCommand(name, summary string, withID bool, call func(ctx context.Context, c *client.Client, entry ticket.Ticket) error) *cli.Command {
	var fields ticketFields
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Flags: func() *pflag.FlagSet {
			flagSet := a.connectionFlags(name)
			fields.addFlags(flagSet, withID)
			return flagSet
		},
		Run: a.withClient(true, func(ctx context.Context, c *client.Client, _ []string) error {
			if withID && fields.ID <= 0 {
				return errors.New("--id is required")
			}
			entry, err := fields.build(time.Now())
			if err != nil {
				return err
			}
			return call(ctx, c, entry)
		}),
	}
}

func (a *app) addCommand() *cli.Command {
	command := a.ticketCommand("add", "Add a ticket", false, func(ctx context.Context, c *client.Client, entry ticket.Ticket) error {
		created, err := c.Add(ctx, entry)
		if err != nil {
			return err
		}
		return a.emit(created, func(w io.Writer) { writeTicket(w, created) })
	})
	command.Examples = []cli.Example{{
		Description: "Add a VIP ticket",
		Command:     "ticketctl add --name concert --x 1 --y 2 --price 40 --type vip --passport P-1 --hair green",
	}}
	return command
}

func (a *app) updateCommand() *cli.Command {
	return a.ticketCommand("update", "Replace one of your tickets", true, func(ctx context.Context, c *client.Client, entry ticket.Ticket) error {
		updated, err := c.Update(ctx, entry)
		if err != nil {
			return err
		}
		return a.emit(updated, func(w io.Writer) { writeTicket(w, updated) })
	})
}

func (a *app) addIfMinCommand() *cli.Command {
	return a.ticketCommand("add-if-min", "Add a ticket if it is cheaper than every other", false, func(ctx context.Context, c *client.Client, entry ticket.Ticket) error {
		created, inserted, minimum, err := c.AddIfMin(ctx, entry)
		if err != nil {
			return err
		}
		result := map[string]any{"inserted": inserted, "minimum": minimum}
		if inserted {
			result["ticket"] = created
		}
		err = a.emit(result, func(w io.Writer) {
			if inserted {
				writeTicket(w, created)
				return
			}
			fmt.Fprintf(w, "not added: price %g is not below the current minimum %g\n", entry.Price, minimum)
		})
		if err == nil && !inserted {
			return &cli.ExitError{Code: 2}
		}
		return err
	})
}

func (a *app) removeByIDCommand() *cli.Command {
	name := "remove-by-id"
	return &cli.Command{
		Name:    name,
		Summary: "Remove one of your tickets by id",
		Usage:   "ticketctl remove-by-id <id> [flags]",
		Flags:   func() *pflag.FlagSet { return a.connectionFlags(name) },
		Run: a.withClient(true, func(ctx context.Context, c *client.Client, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one ticket id")
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("ticket id %q is not a positive integer", args[0])
			}
			if err := c.RemoveByID(ctx, id); err != nil {
				return err
			}
			return a.emit(map[string]int64{"removed": id}, func(w io.Writer) {
				fmt.Fprintf(w, "removed ticket %d\n", id)
			})
		}),
	}
}

func (a *app) clearCommand() *cli.Command {
	var all bool
	return &cli.Command{
		Name:    "clear",
		Summary: "Remove your tickets (--all: every ticket, administrators only)",
		Flags: func() *pflag.FlagSet {
			flagSet := a.connectionFlags("clear")
			flagSet.BoolVar(&all, "all", false, "remove every user's tickets")
			return flagSet
		},
		Run: a.withClient(true, func(ctx context.Context, c *client.Client, _ []string) error {
			removed, err := c.Clear(ctx, all)
			if err != nil {
				return err
			}
			return a.emit(map[string]int64{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "removed %d tickets\n", removed)
			})
		}),
	}
}

func (a *app) removeFirstCommand() *cli.Command {
	return a.simple("remove-first", "Remove the first ticket if you own it", true, func(ctx context.Context, c *client.Client, _ []string) error {
		if err := c.RemoveFirst(ctx); err != nil {
			return err
		}
		return a.emit(map[string]bool{"removed": true}, func(w io.Writer) {
			fmt.Fprintln(w, "removed the first ticket")
		})
	})
}

func (a *app) removeHeadCommand() *cli.Command {
	return a.simple("remove-head", "Remove and print the first ticket if you own it", true, func(ctx context.Context, c *client.Client, _ []string) error {
		removed, err := c.RemoveHead(ctx)
		if err != nil {
			return err
		}
		return a.emit(removed, func(w io.Writer) { writeTicket(w, removed) })
	})
}

func (a *app) sumOfPriceCommand() *cli.Command {
	return a.simple("sum-of-price", "Total price of every ticket", true, func(ctx context.Context, c *client.Client, _ []string) error {
		sum, err := c.SumOfPrice(ctx)
		if err != nil {
			return err
		}
		return a.emit(map[string]float64{"sum": sum}, func(w io.Writer) { fmt.Fprintf(w, "%g\n", sum) })
	})
}

func (a *app) minByDiscountCommand() *cli.Command {
	return a.simple("min-by-discount", "Ticket with the smallest discount", true, func(ctx context.Context, c *client.Client, _ []string) error {
		entry, err := c.MinByDiscount(ctx)
		if err != nil {
			return err
		}
		return a.emit(entry, func(w io.Writer) { writeTicket(w, entry) })
	})
}

func (a *app) maxByNameCommand() *cli.Command {
	return a.simple("max-by-name", "Ticket whose name sorts last", true, func(ctx context.Context, c *client.Client, _ []string) error {
		entry, err := c.MaxByName(ctx)
		if err != nil {
			return err
		}
		return a.emit(entry, func(w io.Writer) { writeTicket(w, entry) })
	})
}

func (a *app) historyCommand() *cli.Command {
	return a.simple("history", "Your most recent commands", true, func(ctx context.Context, c *client.Client, _ []string) error {
		names, err := c.History(ctx)
		if err != nil {
			return err
		}
		return a.emit(names, func(w io.Writer) { writeLines(w, names) })
	})
}

func (a *app) executeScriptCommand() *cli.Command {
	name := "execute-script"
	return &cli.Command{
		Name:    name,
		Summary: "Run a YAML script of commands on the server",
		Usage:   "ticketctl execute-script <file.yaml> [flags]",
		Flags:   func() *pflag.FlagSet { return a.connectionFlags(name) },
		Examples: []cli.Example{{
			Description: "A script is a list of {command, ticket, id, text} entries",
			Command:     "ticketctl execute-script batch.yaml --user alice",
		}},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one script file")
			}
			batch, err := loadScript(args[0], time.Now())
			if err != nil {
				return err
			}
			c, err := a.dial(ctx, true)
			if err != nil {
				return err
			}
			defer c.Close()

			results, err := c.ExecuteScript(ctx, batch)
			if err != nil {
				return err
			}
			failed := 0
			for _, result := range results {
				if !result.Success {
					failed++
				}
			}
			err = a.emit(scriptReport(batch, results), func(w io.Writer) {
				writeScriptResults(w, batch, results)
			})
			if err == nil && failed > 0 {
				return &cli.ExitError{Code: 2}
			}
			return err
		},
	}
}

func (a *app) saveCommand() *cli.Command {
	return a.simple("save", "Ask the server to persist the collection", true, func(ctx context.Context, c *client.Client, _ []string) error {
		if err := c.Save(ctx); err != nil {
			return err
		}
		return a.emit(map[string]bool{"saved": true}, func(w io.Writer) { fmt.Fprintln(w, "saved") })
	})
}

func (a *app) exitCommand() *cli.Command {
	return a.simple("exit", "Save the collection and end the session", true, func(ctx context.Context, c *client.Client, _ []string) error {
		if err := c.Exit(ctx); err != nil {
			return err
		}
		return a.emit(map[string]bool{"exited": true}, func(w io.Writer) { fmt.Fprintln(w, "session closed") })
	})
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(context.Context, []string) error {
			version.Print(a.stdout, "ticketctl")
			return nil
		},
	}
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

type scriptResult struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func scriptReport(batch []wire.Request, results []wire.Response) []scriptResult {
	report := make([]scriptResult, len(results))
	for i, result := range results {
		report[i] = scriptResult{Success: result.Success, Message: result.Message}
		if i < len(batch) {
			report[i].Command = batch[i].Command
		}
	}
	return report
}

func writeScriptResults(w io.Writer, batch []wire.Request, results []wire.Response) {
	for i, result := range scriptReport(batch, results) {
		status := "ok"
		if !result.Success {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%d. %s: %s", i+1, result.Command, status)
		if result.Message != "" {
			fmt.Fprintf(w, " (%s)", result.Message)
		}
		fmt.Fprintln(w)
	}
}
