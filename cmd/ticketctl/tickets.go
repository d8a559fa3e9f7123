// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ticketd/lib/ticket"
)

// ticketFields is the user-supplied part of a ticket. Optional values
// are strings so an unset flag is distinguishable from zero.
type ticketFields struct {
	ID       int64   `yaml:"id"`
	Name     string  `yaml:"name"`
	X        float64 `yaml:"x"`
	Y        float32 `yaml:"y"`
	Price    float64 `yaml:"price"`
	Discount string  `yaml:"discount"`
	Comment  string  `yaml:"comment"`
	Type     string  `yaml:"type"`
	Passport string  `yaml:"passport"`
	Hair     string  `yaml:"hair"`
	Birthday string  `yaml:"birthday"`
	Height   string  `yaml:"height"`
}

func (f *ticketFields) addFlags(flagSet *pflag.FlagSet, withID bool) {
	if withID {
		flagSet.Int64Var(&f.ID, "id", 0, "id of the ticket to replace")
	}
	flagSet.StringVar(&f.Name, "name", "", "ticket name")
	flagSet.Float64Var(&f.X, "x", 0, "x coordinate")
	flagSet.Float32Var(&f.Y, "y", 0, "y coordinate, greater than -420")
	flagSet.Float64Var(&f.Price, "price", 0, "price, greater than 0")
	flagSet.StringVar(&f.Discount, "discount", "", "discount percentage in (0, 100]")
	flagSet.StringVar(&f.Comment, "comment", "", "free-form comment")
	flagSet.StringVar(&f.Type, "type", "", "VIP, USUAL, or CHEAP")
	flagSet.StringVar(&f.Passport, "passport", "", "holder's passport id")
	flagSet.StringVar(&f.Hair, "hair", "", "holder's hair color: GREEN, BLACK, BLUE, or YELLOW")
	flagSet.StringVar(&f.Birthday, "birthday", "", "holder's birthday, YYYY-MM-DD")
	flagSet.StringVar(&f.Height, "height", "", "holder's height, greater than 0")
}

// build converts the fields into a ticket and validates it against
// now. The id, creation date, and owner are left for the server.
func (f *ticketFields) build(now time.Time) (ticket.Ticket, error) {
	entry := ticket.Ticket{
		ID:          f.ID,
		Name:        f.Name,
		Coordinates: ticket.Coordinates{X: f.X, Y: f.Y},
		Price:       f.Price,
		Comment:     f.Comment,
		Person:      ticket.Person{PassportID: f.Passport},
	}

	var err error
	if entry.Type, err = ticket.ParseTicketType(f.Type); err != nil {
		return ticket.Ticket{}, err
	}
	if f.Hair != "" {
		if entry.Person.HairColor, err = ticket.ParseColor(f.Hair); err != nil {
			return ticket.Ticket{}, err
		}
	}
	if f.Discount != "" {
		discount, err := strconv.ParseInt(strings.TrimSpace(f.Discount), 10, 64)
		if err != nil {
			return ticket.Ticket{}, fmt.Errorf("discount %q is not an integer", f.Discount)
		}
		entry.Discount = &discount
	}
	if f.Height != "" {
		height, err := strconv.ParseFloat(strings.TrimSpace(f.Height), 64)
		if err != nil {
			return ticket.Ticket{}, fmt.Errorf("height %q is not a number", f.Height)
		}
		entry.Person.Height = &height
	}
	if f.Birthday != "" {
		birthday, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Birthday))
		if err != nil {
			return ticket.Ticket{}, fmt.Errorf("birthday %q is not a YYYY-MM-DD date", f.Birthday)
		}
		entry.Person.Birthday = &birthday
	}

	if err := entry.Validate(now); err != nil {
		return ticket.Ticket{}, err
	}
	return entry, nil
}

// writeTickets renders tickets as an aligned table.
func writeTickets(w io.Writer, tickets []ticket.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "(no tickets)")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tDISCOUNT\tTYPE\tX\tY\tPASSPORT\tHAIR\tOWNER\tCREATED")
	for _, entry := range tickets {
		discount := "-"
		if value, ok := entry.DiscountValue(); ok {
			discount = strconv.FormatInt(value, 10) + "%"
		}
		kind := string(entry.Type)
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%g\t%s\t%s\t%g\t%g\t%s\t%s\t%d\t%s\n",
			entry.ID, entry.Name, entry.Price, discount, kind,
			entry.Coordinates.X, entry.Coordinates.Y,
			entry.Person.PassportID, entry.Person.HairColor,
			entry.OwnerID, entry.CreationDate.Format(time.RFC3339))
	}
	tw.Flush()
}

func writeTicket(w io.Writer, entry ticket.Ticket) {
	writeTickets(w, []ticket.Ticket{entry})
}
