package session

import (
	"errors"
	"fmt"
)

var (
	ErrIneligible          = errors.New("action is not eligible")
	ErrApproveNotConfirmed = errors.New("approve must be confirmed before funding")
	ErrFundExceedsApproval = errors.New("fund amount exceeds the approved amount")
	ErrInvalidStreamId     = errors.New("stream id must be a positive integer")
	ErrInvalidVault        = errors.New("vault address is not valid")
	ErrInvalidToken        = errors.New("token address is not valid")
)

// Predicates reported by IneligibleError
const (
	PredicateVault    = "vault"
	PredicatePayee    = "payee"
	PredicateWindow   = "window"
	PredicateRate     = "rate"
	PredicateInFlight = "in_flight"
)

// IneligibleError names the first create-stream predicate that does not hold
type IneligibleError struct {
	Predicate string
	Detail    string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("cannot create stream (%s): %s", e.Predicate, e.Detail)
}

func (e *IneligibleError) Is(target error) bool {
	return target == ErrIneligible
}
