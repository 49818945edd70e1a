package domain

import "errors"

var (
	ErrBillNotFound      = errors.New("bill not found")
	ErrAlreadyWithdrawn  = errors.New("already withdrawn")
	ErrNotPayee          = errors.New("not payee")
	ErrNotFunded         = errors.New("not funded")
	ErrDeadlineNotPassed = errors.New("deadline not passed")
	ErrNoContribution    = errors.New("no contribution")
	ErrBillFunded        = errors.New("bill funded")
	ErrNoRewardPool      = errors.New("no reward pool")
	ErrNotAgent          = errors.New("not agent")
	ErrNotOwner          = errors.New("not owner")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidPayee      = errors.New("invalid payee")
	ErrTransferRejected  = errors.New("direct transfers rejected")
	ErrReentrantCall     = errors.New("reentrant call")
)
