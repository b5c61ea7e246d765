// Package apperr defines the domain error kinds returned by the command and
// query services. Transport layers map a Kind to a status code; the Message
// is safe to show to callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	AlreadyExists
	AlreadyAssociated
	HasDependents
	BalanceNotZero
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case AlreadyAssociated:
		return "already_associated"
	case HasDependents:
		return "has_dependents"
	case BalanceNotZero:
		return "balance_not_zero"
	case InvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}

// Error is a domain failure. Fields holds per-field violations for
// InvalidArgument errors and is nil otherwise.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to cause. A nil cause yields nil.
func Wrap(cause error, kind Kind, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Invalid builds an InvalidArgument error carrying field violations.
func Invalid(message string, fields map[string]string) *Error {
	return &Error{Kind: InvalidArgument, Message: message, Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Messages used by the rule engines. Wording is part of the public contract.
const (
	MsgUserNotFound          = "User not found with ID: %d"
	MsgUserEmailExists       = "User already exists with email: %s"
	MsgUserHasAccounts       = "Cannot delete user with ID %d because they have associated accounts"
	MsgAccountNotFound       = "Account not found with ID: %d"
	MsgAccountNumberExists   = "Account already exists with account number: %s"
	MsgAccountBalanceNotZero = "Cannot delete account with ID %d because balance is not zero"
	MsgUserAlreadyAssociated = "User with ID %d is already associated with account ID %d"
	MsgMetricsBoundMissing   = "At least one of greaterThan or lessThan parameter must be provided"
	MsgBalanceNegative       = "Balance must be positive or zero"
	MsgBalanceTooLarge       = "Balance must be less than 100000000000000000"
	MsgNameRequired          = "Name is required"
	MsgAccountNumberRequired = "Account number is required"
	MsgInternal              = "Internal server error"
	MsgValidationFailed      = "Validation failed"
)
