package ledger

import "fmt"

// ErrorCode enumerates the ledger's validation error kinds (spec.md §4.1
// Errors).
type ErrorCode string

const (
	ErrUnknownOutpoint ErrorCode = "UnknownOutpoint"
	ErrLockedOutpoint  ErrorCode = "LockedOutpoint"
	ErrBadSignature    ErrorCode = "BadSignature"
	ErrUnbalanced      ErrorCode = "Unbalanced"
	ErrNonceGap        ErrorCode = "NonceGap"
	ErrNegativeAmount  ErrorCode = "NegativeAmount"
	ErrDuplicateOutput ErrorCode = "DuplicateOutput"
)

// Error is the ledger's typed error, carrying a machine-readable Code and a
// human-readable Msg (spec.md §7 validation errors: "the caller receives
// the kind").
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}
