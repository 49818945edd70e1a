package domain

import "errors"

// Stable error codes carried on the wire. Handlers map ledger errors to a
// code; clients map the code back to the sentinel, so errors.Is works the
// same on both sides of the HTTP boundary.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBillNotFound, "bill_not_found"},
	{ErrAlreadyWithdrawn, "already_withdrawn"},
	{ErrNotPayee, "not_payee"},
	{ErrNotFunded, "not_funded"},
	{ErrDeadlineNotPassed, "deadline_not_passed"},
	{ErrNoContribution, "no_contribution"},
	{ErrBillFunded, "bill_funded"},
	{ErrNoRewardPool, "no_reward_pool"},
	{ErrNotAgent, "not_agent"},
	{ErrNotOwner, "not_owner"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidPayee, "invalid_payee"},
	{ErrTransferRejected, "transfer_rejected"},
	{ErrReentrantCall, "reentrant_call"},
}

// ErrorCode returns the wire code for a ledger error, or "internal".
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

// ErrorFromCode resolves a wire code back to its sentinel, or nil when the
// code is unknown.
func ErrorFromCode(code string) error {
	for _, e := range errorCodes {
		if e.code == code {
			return e.err
		}
	}
	return nil
}
