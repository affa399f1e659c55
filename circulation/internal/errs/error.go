package errs

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("patron is blocked")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("concurrent modification")
	ErrDuplicateHold     = errors.New("patron already holds this book")
	ErrEmptyBarcodes     = errors.New("no barcodes to process")
	ErrInvalidArgument   = errors.New("invalid argument")
)

type ValidationErrorResponse struct {
	Message string `json:"message"`
	Errors  struct {
		AdditionalProperties string `json:"additionalProperties"`
	} `json:"errors"`
}
