// internal/circulation/errors.go
package circulation

import "errors"

// Kind classifies circulation failures.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindItemUnavailable
	KindLoanLimitReached
	KindMemberHasOverdueLoan
	KindAlreadyReturned
	// KindConsistencyFault means a loan points at an item or member the store
	// cannot resolve. It is a defect, not a caller mistake.
	KindConsistencyFault
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindItemUnavailable:
		return "item_unavailable"
	case KindLoanLimitReached:
		return "loan_limit_reached"
	case KindMemberHasOverdueLoan:
		return "member_has_overdue_loan"
	case KindAlreadyReturned:
		return "already_returned"
	case KindConsistencyFault:
		return "consistency_fault"
	default:
		return "unknown"
	}
}

// Error is a circulation rule failure carrying the offending key.
type Error struct {
	Kind   Kind
	Reason string
	Key    string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Key
}

// Is matches targets of the same kind. A target with a Reason or Key only
// matches errors with the same Reason or Key.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind &&
		(t.Reason == "" || t.Reason == e.Reason) &&
		(t.Key == "" || t.Key == e.Key)
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrItemNotFound         = &Error{Kind: KindNotFound, Reason: "item not found"}
	ErrMemberNotFound       = &Error{Kind: KindNotFound, Reason: "member not found"}
	ErrLoanNotFound         = &Error{Kind: KindNotFound, Reason: "loan not found"}
	ErrItemUnavailable      = &Error{Kind: KindItemUnavailable, Reason: "item unavailable"}
	ErrItemAlreadyOnLoan    = &Error{Kind: KindItemUnavailable, Reason: "item already on loan"}
	ErrLoanLimitReached     = &Error{Kind: KindLoanLimitReached, Reason: "loan limit reached"}
	ErrMemberHasOverdueLoan = &Error{Kind: KindMemberHasOverdueLoan, Reason: "member has overdue loan"}
	ErrLoanAlreadyReturned  = &Error{Kind: KindAlreadyReturned, Reason: "loan already returned"}
	ErrConsistencyFault     = &Error{Kind: KindConsistencyFault}
	ErrLoanItemMissing      = &Error{Kind: KindConsistencyFault, Reason: "consistency fault: loan references missing item"}
	ErrLoanMemberMissing    = &Error{Kind: KindConsistencyFault, Reason: "consistency fault: loan references missing member"}
)

func newError(base *Error, key string) *Error {
	return &Error{Kind: base.Kind, Reason: base.Reason, Key: key}
}

// KindOf returns the kind of the circulation error in err's chain, or
// KindUnknown for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
