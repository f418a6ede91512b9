package matching

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidColumn is returned when a requested column is not in its table
	ErrInvalidColumn = errors.New("invalid column")
	// ErrColumnCountMismatch is returned when the data and lookup column lists differ in length
	ErrColumnCountMismatch = errors.New("column count mismatch")
	// ErrEmptyPairing is returned when no columns were selected
	ErrEmptyPairing = errors.New("no columns selected")
)

// Table sides used in ColumnError
const (
	SideData   = "data"
	SideLookup = "lookup"
)

// ColumnError reports which column of which table could not be found
type ColumnError struct {
	Table  string
	Column string
}

func (e *ColumnError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %q", ErrInvalidColumn, e.Column)
	}
	return fmt.Sprintf("%s: %q not found in %s table", ErrInvalidColumn, e.Column, e.Table)
}

// Unwrap lets errors.Is match ErrInvalidColumn
func (e *ColumnError) Unwrap() error {
	return ErrInvalidColumn
}
