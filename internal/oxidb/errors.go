package oxidb

import (
	"errors"
	"fmt"
)

// ErrBroken is returned by a client whose stream was interrupted mid-exchange.
var ErrBroken = errors.New("oxidb: connection out of sync")

// Error is returned when the OxiDB server returns an error response.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oxidb: %s", e.Msg)
}

// TransactionConflictError is returned on OCC version conflict during commit.
type TransactionConflictError struct {
	Msg string
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("oxidb: transaction conflict: %s", e.Msg)
}
