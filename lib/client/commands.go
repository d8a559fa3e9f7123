// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/ticketd/lib/ticket"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, wire.CommandPing, nil)
	return err
}

// Register creates an account and, on success, attaches its
// credentials to later requests. Returns the new user id.
func (c *Client) Register(ctx context.Context, login, password string) (int64, error) {
	response, err := c.Do(ctx, wire.Request{Command: wire.CommandRegister, Login: login, Password: password})
	if err != nil {
		return 0, err
	}
	if !response.Success {
		return 0, &ResponseError{Command: wire.CommandRegister, Message: response.Message}
	}
	c.SetCredentials(login, password)
	return payloadValue(wire.CommandRegister, response, (*wire.Payload).Int)
}

// LoginAs verifies credentials and, on success, attaches them to later
// requests. Returns the user id.
func (c *Client) LoginAs(ctx context.Context, login, password string) (int64, error) {
	response, err := c.Do(ctx, wire.Request{Command: wire.CommandLogin, Login: login, Password: password})
	if err != nil {
		return 0, err
	}
	if !response.Success {
		return 0, &ResponseError{Command: wire.CommandLogin, Message: response.Message}
	}
	c.SetCredentials(login, password)
	return payloadValue(wire.CommandLogin, response, (*wire.Payload).Int)
}

// Help returns "name: summary" lines for every command.
func (c *Client) Help(ctx context.Context) ([]string, error) {
	return callValue(c, ctx, wire.CommandHelp, nil, (*wire.Payload).Strings)
}

// Info returns the server's description of the collection.
func (c *Client) Info(ctx context.Context) (string, error) {
	return callValue(c, ctx, wire.CommandInfo, nil, (*wire.Payload).Text)
}

// Show returns every ticket in id order.
func (c *Client) Show(ctx context.Context) ([]ticket.Ticket, error) {
	return callValue(c, ctx, wire.CommandShow, nil, (*wire.Payload).Tickets)
}

// Add creates a ticket and returns it with its assigned id and
// creation date.
func (c *Client) Add(ctx context.Context, entry ticket.Ticket) (ticket.Ticket, error) {
	return callValue(c, ctx, wire.CommandAdd, wire.TicketPayload(entry), (*wire.Payload).Ticket)
}

// Update replaces the ticket with entry.ID.
func (c *Client) Update(ctx context.Context, entry ticket.Ticket) (ticket.Ticket, error) {
	return callValue(c, ctx, wire.CommandUpdate, wire.TicketPayload(entry), (*wire.Payload).Ticket)
}

// RemoveByID removes one of the caller's tickets.
func (c *Client) RemoveByID(ctx context.Context, id int64) error {
	_, err := c.Call(ctx, wire.CommandRemoveByID, wire.IntPayload(id))
	return err
}

// Clear removes the caller's tickets, or every ticket when all is set
// and the caller is an administrator. Returns the number removed.
func (c *Client) Clear(ctx context.Context, all bool) (int64, error) {
	var data *wire.Payload
	if all {
		data = wire.StringPayload("all")
	}
	return callValue(c, ctx, wire.CommandClear, data, (*wire.Payload).Int)
}

// RemoveFirst removes the first ticket if the caller owns it.
func (c *Client) RemoveFirst(ctx context.Context) error {
	_, err := c.Call(ctx, wire.CommandRemoveFirst, nil)
	return err
}

// RemoveHead removes and returns the first ticket if the caller owns
// it.
func (c *Client) RemoveHead(ctx context.Context) (ticket.Ticket, error) {
	return callValue(c, ctx, wire.CommandRemoveHead, nil, (*wire.Payload).Ticket)
}

// AddIfMin creates entry when its price is below every live ticket's.
// When the server declines, inserted is false and minimum holds the
// current minimum price; err stays nil.
func (c *Client) AddIfMin(ctx context.Context, entry ticket.Ticket) (created ticket.Ticket, inserted bool, minimum float64, err error) {
	response, err := c.Call(ctx, wire.CommandAddIfMin, wire.TicketPayload(entry))
	var responseErr *ResponseError
	if errors.As(err, &responseErr) && responseErr.Data != nil {
		if current, decodeErr := responseErr.Data.Float(); decodeErr == nil {
			return ticket.Ticket{}, false, current, nil
		}
	}
	if err != nil {
		return ticket.Ticket{}, false, 0, err
	}
	created, err = payloadValue(wire.CommandAddIfMin, response, (*wire.Payload).Ticket)
	if err != nil {
		return ticket.Ticket{}, false, 0, err
	}
	return created, true, created.Price, nil
}

// SumOfPrice returns the total price of every ticket.
func (c *Client) SumOfPrice(ctx context.Context) (float64, error) {
	return callValue(c, ctx, wire.CommandSumOfPrice, nil, (*wire.Payload).Float)
}

// MinByDiscount returns the ticket with the smallest discount.
func (c *Client) MinByDiscount(ctx context.Context) (ticket.Ticket, error) {
	return callValue(c, ctx, wire.CommandMinByDiscount, nil, (*wire.Payload).Ticket)
}

// MaxByName returns the ticket whose name sorts last.
func (c *Client) MaxByName(ctx context.Context) (ticket.Ticket, error) {
	return callValue(c, ctx, wire.CommandMaxByName, nil, (*wire.Payload).Ticket)
}

// History returns the caller's most recent command names, oldest
// first.
func (c *Client) History(ctx context.Context) ([]string, error) {
	return callValue(c, ctx, wire.CommandHistory, nil, (*wire.Payload).Strings)
}

// ExecuteScript runs batch on the server with the caller's credentials
// and returns one response per entry.
func (c *Client) ExecuteScript(ctx context.Context, batch []wire.Request) ([]wire.Response, error) {
	return callValue(c, ctx, wire.CommandExecuteScript, wire.RequestsPayload(batch), (*wire.Payload).Responses)
}

// Save asks the server to persist the collection.
func (c *Client) Save(ctx context.Context) error {
	_, err := c.Call(ctx, wire.CommandSave, nil)
	return err
}

// Exit ends the session. The server saves, answers, and closes the
// connection; the client is closed afterwards whatever the outcome.
func (c *Client) Exit(ctx context.Context) error {
	_, err := c.Call(ctx, wire.CommandExit, nil)
	if closeErr := c.Close(); err == nil && closeErr != nil {
		return fmt.Errorf("closing after exit: %w", closeErr)
	}
	return err
}

// callValue runs Call and decodes the response payload with decode.
func callValue[T any](c *Client, ctx context.Context, command string, data *wire.Payload, decode func(*wire.Payload) (T, error)) (T, error) {
	response, err := c.Call(ctx, command, data)
	if err != nil {
		var zero T
		return zero, err
	}
	return payloadValue(command, response, decode)
}

func payloadValue[T any](command string, response wire.Response, decode func(*wire.Payload) (T, error)) (T, error) {
	value, err := decode(response.Data)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("decoding %s response: %w", command, err)
	}
	return value, nil
}
