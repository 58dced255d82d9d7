package ledger

import (
	"errors"
	"fmt"
)

// Business-rule failures. They are safe to show the user.
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("amount below minimum withdrawal")
	ErrAboveMaximum        = errors.New("amount above maximum withdrawal")
	ErrInvalidTransition   = errors.New("invalid withdrawal transition")
	ErrTooPrecise          = errors.New("amount has more than 8 decimal places")
)

var validation = []error{
	ErrNotFound,
	ErrInsufficientBalance,
	ErrBelowMinimum,
	ErrAboveMaximum,
	ErrInvalidTransition,
	ErrTooPrecise,
}

// StorageError marks a persistence failure, as opposed to a rejected request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	for _, target := range validation {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// wrap passes validation errors through and tags everything else as storage.
func wrap(op string, err error) error {
	if err == nil || IsValidation(err) || IsStorage(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
