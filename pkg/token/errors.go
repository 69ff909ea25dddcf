package token

import (
	"github.com/zeebo/errs"
)

var (
	// ErrInsufficientBalance is returned when the sending account holds
	// fewer tokens than the requested amount.
	ErrInsufficientBalance = errs.Class("insufficient balance")

	// ErrInsufficientAllowance is returned when a spender tries to move more
	// than it has been approved for, or an allowance would drop below zero.
	ErrInsufficientAllowance = errs.Class("insufficient allowance")

	ErrInvalidSender   = errs.Class("invalid sender")
	ErrInvalidReceiver = errs.Class("invalid receiver")
	ErrInvalidApprover = errs.Class("invalid approver")
	ErrInvalidSpender  = errs.Class("invalid spender")
	ErrInvalidAmount   = errs.Class("invalid amount")

	// ErrInvalidParams is returned by New for unusable deployment parameters.
	ErrInvalidParams = errs.Class("invalid params")
)
