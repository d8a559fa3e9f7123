// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MinCoordinateY is the exclusive lower bound for Coordinates.Y.
const MinCoordinateY = -420

// TicketType classifies a ticket. The zero value means "no type".
type TicketType string

const (
	TypeVIP   TicketType = "VIP"
	TypeUsual TicketType = "USUAL"
	TypeCheap TicketType = "CHEAP"
)

// ParseTicketType parses a type name case-insensitively. An empty
// string parses to the zero TicketType.
func ParseTicketType(value string) (TicketType, error) {
	switch TicketType(strings.ToUpper(strings.TrimSpace(value))) {
	case "":
		return "", nil
	case TypeVIP:
		return TypeVIP, nil
	case TypeUsual:
		return TypeUsual, nil
	case TypeCheap:
		return TypeCheap, nil
	default:
		return "", fmt.Errorf("unknown ticket type %q (want VIP, USUAL, or CHEAP)", value)
	}
}

// Coordinates locates the ticket's venue on an abstract plane.
type Coordinates struct {
	X float64 `json:"x"`
	Y float32 `json:"y"`
}

// Ticket is a sellable item held by the collection manager.
//
// ID and CreationDate are assigned by the collection manager on
// create; OwnerID is bound to the authenticated caller at insertion
// and never changes afterwards.
type Ticket struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Coordinates  Coordinates `json:"coordinates"`
	CreationDate time.Time   `json:"creation_date"`
	Price        float64     `json:"price"`

	// Discount is a percentage in (0, 100]. Nil when the ticket has
	// no discount.
	Discount *int64 `json:"discount,omitempty"`

	Comment string     `json:"comment,omitempty"`
	Type    TicketType `json:"type,omitempty"`
	Person  Person     `json:"person"`
	OwnerID int64      `json:"owner_id"`
}

// Validate checks every client-controlled field. It does not check ID,
// CreationDate, or OwnerID, which the server assigns. now is the
// reference time for the person's birthday.
func (t *Ticket) Validate(now time.Time) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("ticket: name is required")
	}
	if math.IsNaN(t.Coordinates.X) || math.IsInf(t.Coordinates.X, 0) {
		return errors.New("ticket: coordinates.x must be a finite number")
	}
	if !(t.Coordinates.Y > MinCoordinateY) || math.IsInf(float64(t.Coordinates.Y), 0) {
		return fmt.Errorf("ticket: coordinates.y must be greater than %d, got %v", MinCoordinateY, t.Coordinates.Y)
	}
	if !(t.Price > 0) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("ticket: price must be greater than 0, got %v", t.Price)
	}
	if t.Discount != nil && (*t.Discount <= 0 || *t.Discount > 100) {
		return fmt.Errorf("ticket: discount must be in (0, 100], got %d", *t.Discount)
	}
	switch t.Type {
	case "", TypeVIP, TypeUsual, TypeCheap:
		// Valid.
	default:
		return fmt.Errorf("ticket: unknown type %q", t.Type)
	}
	if err := t.Person.Validate(now); err != nil {
		return fmt.Errorf("ticket: person: %w", err)
	}
	return nil
}

// Clone returns a deep copy. Stored tickets are only ever handed out
// as clones so callers cannot mutate collection state through pointer
// fields.
func (t Ticket) Clone() Ticket {
	if t.Discount != nil {
		discount := *t.Discount
		t.Discount = &discount
	}
	t.Person = t.Person.Clone()
	return t
}

// Equal reports whether two tickets are field-equal. Times are
// compared by instant, not by location pointer.
func (t Ticket) Equal(other Ticket) bool {
	return t.ID == other.ID &&
		t.Name == other.Name &&
		t.Coordinates == other.Coordinates &&
		t.CreationDate.Equal(other.CreationDate) &&
		t.Price == other.Price &&
		equalInt64(t.Discount, other.Discount) &&
		t.Comment == other.Comment &&
		t.Type == other.Type &&
		t.Person.Equal(other.Person) &&
		t.OwnerID == other.OwnerID
}

// DiscountValue returns the discount and whether one is set.
func (t Ticket) DiscountValue() (int64, bool) {
	if t.Discount == nil {
		return 0, false
	}
	return *t.Discount, true
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
