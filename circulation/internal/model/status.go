package model

import (
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
)

type BookStatus string

const (
	StatusAvailable  BookStatus = "AVAILABLE"
	StatusLoaned     BookStatus = "LOANED"
	StatusLost       BookStatus = "LOST"
	StatusProcessing BookStatus = "PROCESSING"
	StatusHeld       BookStatus = "HELD"
)

func (s BookStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusLoaned, StatusLost, StatusProcessing, StatusHeld:
		return true
	}
	return false
}

// BookEvent is a circulation action applied to a book.
type BookEvent string

const (
	// EventCheckout issues a loan on a shelved book.
	EventCheckout BookEvent = "checkout"
	// EventClaim issues a loan to the patron the book is held for.
	EventClaim BookEvent = "claim"
	// EventRelease puts the book back on the shelf.
	EventRelease BookEvent = "release"
	// EventPromote reserves the book for the next patron in the hold queue.
	EventPromote BookEvent = "promote"
)

// Release and promote are accepted from every state: a return with no open loan
// still runs hold promotion, whatever the book was marked as before.
var transitions = map[BookStatus]map[BookEvent]BookStatus{
	StatusAvailable: {
		EventCheckout: StatusLoaned,
		EventRelease:  StatusAvailable,
		EventPromote:  StatusHeld,
	},
	StatusHeld: {
		EventClaim:   StatusLoaned,
		EventRelease: StatusAvailable,
		EventPromote: StatusHeld,
	},
	StatusLoaned: {
		EventRelease: StatusAvailable,
		EventPromote: StatusHeld,
	},
	StatusLost: {
		EventRelease: StatusAvailable,
		EventPromote: StatusHeld,
	},
	StatusProcessing: {
		EventRelease: StatusAvailable,
		EventPromote: StatusHeld,
	},
}

// Transition returns the status reached by applying ev, or ErrInvalidTransition.
func (s BookStatus) Transition(ev BookEvent) (BookStatus, error) {
	next, ok := transitions[s][ev]
	if !ok {
		return s, errors.Wrapf(errs.ErrInvalidTransition, "%s on %s", ev, s)
	}
	return next, nil
}
