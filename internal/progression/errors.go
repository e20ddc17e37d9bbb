package progression

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindPrecondition Kind = "precondition"
	KindInternal     Kind = "internal"
)

// Error is a business rejection. Sentinels below are compared with errors.Is;
// wrapped variants carry extra detail in the message.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrInvalidInput = newError(KindValidation, "invalid input")

	ErrAccountNotFound = newError(KindNotFound, "account not found")
	ErrItemNotFound    = newError(KindNotFound, "item not found")
	ErrNotOwned        = newError(KindNotFound, "item not owned")
	ErrMatchNotFound   = newError(KindNotFound, "match not found")
	ErrEdgeNotFound    = newError(KindNotFound, "research link not found")

	ErrAlreadyOwned    = newError(KindConflict, "item already owned")
	ErrDuplicateReport = newError(KindConflict, "results already submitted for this account")
	ErrConflict        = newError(KindConflict, "conflicting concurrent update")
	ErrTxConflict      = newError(KindConflict, "transaction conflict, retry later")

	ErrItemLocked         = newError(KindPrecondition, "item is not researched (locked)")
	ErrInsufficientFunds  = newError(KindPrecondition, "insufficient funds")
	ErrInsufficientXP     = newError(KindPrecondition, "not enough xp on predecessor")
	ErrInsufficientFreeXP = newError(KindPrecondition, "not enough free xp")
	ErrLastItem           = newError(KindPrecondition, "cannot release the last remaining item")
	ErrMatchEnded         = newError(KindPrecondition, "match already ended")
)

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
