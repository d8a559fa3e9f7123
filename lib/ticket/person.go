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

// Color is a person's hair color.
type Color string

const (
	ColorGreen  Color = "GREEN"
	ColorBlack  Color = "BLACK"
	ColorBlue   Color = "BLUE"
	ColorYellow Color = "YELLOW"
)

// ParseColor parses a color name case-insensitively.
func ParseColor(value string) (Color, error) {
	switch Color(strings.ToUpper(strings.TrimSpace(value))) {
	case ColorGreen:
		return ColorGreen, nil
	case ColorBlack:
		return ColorBlack, nil
	case ColorBlue:
		return ColorBlue, nil
	case ColorYellow:
		return ColorYellow, nil
	default:
		return "", fmt.Errorf("unknown hair color %q (want GREEN, BLACK, BLUE, or YELLOW)", value)
	}
}

// Person is the ticket holder. It is embedded by value in a Ticket but
// addressable across the collection by PassportID, which the
// collection manager keeps unique.
type Person struct {
	Birthday   *time.Time `json:"birthday,omitempty"`
	Height     *float64   `json:"height,omitempty"`
	PassportID string     `json:"passport_id"`
	HairColor  Color      `json:"hair_color"`
}

// Validate checks the person's fields against now.
func (p *Person) Validate(now time.Time) error {
	if p.Birthday != nil && p.Birthday.After(now) {
		return fmt.Errorf("birthday %s is in the future", p.Birthday.Format(time.DateOnly))
	}
	if p.Height != nil && (!(*p.Height > 0) || math.IsInf(*p.Height, 0)) {
		return fmt.Errorf("height must be greater than 0, got %v", *p.Height)
	}
	if strings.TrimSpace(p.PassportID) == "" {
		return errors.New("passport id is required")
	}
	switch p.HairColor {
	case ColorGreen, ColorBlack, ColorBlue, ColorYellow:
		// Valid.
	case "":
		return errors.New("hair color is required")
	default:
		return fmt.Errorf("unknown hair color %q", p.HairColor)
	}
	return nil
}

// Clone returns a deep copy of the person.
func (p Person) Clone() Person {
	if p.Birthday != nil {
		birthday := *p.Birthday
		p.Birthday = &birthday
	}
	if p.Height != nil {
		height := *p.Height
		p.Height = &height
	}
	return p
}

// Equal reports whether two persons are field-equal.
func (p Person) Equal(other Person) bool {
	if p.PassportID != other.PassportID || p.HairColor != other.HairColor {
		return false
	}
	if (p.Birthday == nil) != (other.Birthday == nil) {
		return false
	}
	if p.Birthday != nil && !p.Birthday.Equal(*other.Birthday) {
		return false
	}
	if (p.Height == nil) != (other.Height == nil) {
		return false
	}
	return p.Height == nil || *p.Height == *other.Height
}
