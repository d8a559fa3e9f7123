// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/ticketd/lib/codec"
	"github.com/bureau-foundation/ticketd/lib/ticket"
)

// Kind tags the type of a payload body.
type Kind string

const (
	KindTicket    Kind = "ticket"
	KindPerson    Kind = "person"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindString    Kind = "string"
	KindTickets   Kind = "tickets"
	KindStrings   Kind = "strings"
	KindRequests  Kind = "requests"
	KindResponses Kind = "responses"
)

// ErrPayloadKind is returned (wrapped) when a payload is missing or
// carries a different kind than the caller expects.
var ErrPayloadKind = errors.New("unexpected payload kind")

// Payload is the polymorphic data slot of an envelope: a kind tag and
// the CBOR encoding of the value. The body is decoded only when a
// handler asks for a specific kind.
type Payload struct {
	Kind Kind             `cbor:"kind"`
	Body codec.RawMessage `cbor:"body"`
}

// NewPayload encodes value under kind.
func NewPayload(kind Kind, value any) (*Payload, error) {
	body, err := codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	return &Payload{Kind: kind, Body: body}, nil
}

// mustPayload is used by the typed constructors below, whose value
// types always encode.
func mustPayload(kind Kind, value any) *Payload {
	payload, err := NewPayload(kind, value)
	if err != nil {
		panic("wire: " + err.Error())
	}
	return payload
}

func TicketPayload(value ticket.Ticket) *Payload    { return mustPayload(KindTicket, value) }
func PersonPayload(value ticket.Person) *Payload    { return mustPayload(KindPerson, value) }
func IntPayload(value int64) *Payload               { return mustPayload(KindInt, value) }
func FloatPayload(value float64) *Payload           { return mustPayload(KindFloat, value) }
func StringPayload(value string) *Payload           { return mustPayload(KindString, value) }
func TicketsPayload(value []ticket.Ticket) *Payload { return mustPayload(KindTickets, nonNil(value)) }
func StringsPayload(value []string) *Payload        { return mustPayload(KindStrings, nonNil(value)) }
func RequestsPayload(value []Request) *Payload      { return mustPayload(KindRequests, nonNil(value)) }
func ResponsesPayload(value []Response) *Payload    { return mustPayload(KindResponses, nonNil(value)) }

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

// Ticket decodes a ticket payload.
func (p *Payload) Ticket() (ticket.Ticket, error) {
	var value ticket.Ticket
	err := p.decode(KindTicket, &value)
	return value, err
}

// Person decodes a person payload.
func (p *Payload) Person() (ticket.Person, error) {
	var value ticket.Person
	err := p.decode(KindPerson, &value)
	return value, err
}

// Int decodes an integer payload.
func (p *Payload) Int() (int64, error) {
	var value int64
	err := p.decode(KindInt, &value)
	return value, err
}

// Float decodes a floating-point payload. Integer payloads are
// accepted and widened.
func (p *Payload) Float() (float64, error) {
	if p != nil && p.Kind == KindInt {
		value, err := p.Int()
		return float64(value), err
	}
	var value float64
	err := p.decode(KindFloat, &value)
	return value, err
}

// Text decodes a string payload.
func (p *Payload) Text() (string, error) {
	var value string
	err := p.decode(KindString, &value)
	return value, err
}

// Tickets decodes a ticket list payload.
func (p *Payload) Tickets() ([]ticket.Ticket, error) {
	var value []ticket.Ticket
	err := p.decode(KindTickets, &value)
	return value, err
}

// Strings decodes a string list payload.
func (p *Payload) Strings() ([]string, error) {
	var value []string
	err := p.decode(KindStrings, &value)
	return value, err
}

// Requests decodes a script batch.
func (p *Payload) Requests() ([]Request, error) {
	var value []Request
	err := p.decode(KindRequests, &value)
	return value, err
}

// Responses decodes the results of a script batch.
func (p *Payload) Responses() ([]Response, error) {
	var value []Response
	err := p.decode(KindResponses, &value)
	return value, err
}

// Value decodes the body into its natural Go type according to Kind.
// ticketctl uses it to print responses as JSON.
func (p *Payload) Value() (any, error) {
	if p == nil {
		return nil, nil
	}
	switch p.Kind {
	case KindTicket:
		return p.Ticket()
	case KindPerson:
		return p.Person()
	case KindInt:
		return p.Int()
	case KindFloat:
		return p.Float()
	case KindString:
		return p.Text()
	case KindTickets:
		return p.Tickets()
	case KindStrings:
		return p.Strings()
	case KindRequests:
		return p.Requests()
	case KindResponses:
		return p.Responses()
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrPayloadKind, p.Kind)
	}
}

func (p *Payload) decode(want Kind, target any) error {
	if p == nil {
		return fmt.Errorf("%w: want %s, got no payload", ErrPayloadKind, want)
	}
	if p.Kind != want {
		return fmt.Errorf("%w: want %s, got %s", ErrPayloadKind, want, p.Kind)
	}
	if err := codec.Unmarshal(p.Body, target); err != nil {
		return fmt.Errorf("%w: %s body: %v", ErrMalformedEnvelope, want, err)
	}
	return nil
}
