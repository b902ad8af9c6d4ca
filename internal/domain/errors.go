package domain

import "errors"

// Desk call failures are sentinel errors matched with errors.Is.
// Every failure aborts the whole call with no state change; callers
// resubmit with adjusted parameters instead of retrying blindly.
// Solvency violations are NOT errors: they panic (see Desk.Sell).
var (
	// ErrPaused is returned when buy/sell is attempted while trading is paused.
	ErrPaused = errors.New("desk is paused")

	// ErrNotPaused is returned when a maintenance operation requires the desk to be paused first.
	ErrNotPaused = errors.New("desk is not paused")

	// ErrClosed is returned for any operation after the desk has been closed. Terminal.
	ErrClosed = errors.New("desk is closed")

	// ErrUnauthorized is returned when a privileged operation is called by a non-owner.
	ErrUnauthorized = errors.New("caller is not the owner")

	// ErrNotPendingOwner is returned when AcceptOwnership is called by anyone but the nominee.
	ErrNotPendingOwner = errors.New("caller is not the pending owner")

	// ErrInsufficientInventory is returned when a buy exceeds the desk's token reserve.
	ErrInsufficientInventory = errors.New("insufficient token inventory")

	// ErrSlippageExceeded is returned when a settlement would violate the caller's bound.
	ErrSlippageExceeded = errors.New("slippage bound exceeded")

	// ErrInsufficientBuyback is returned when a sell exceeds the net amount the desk has sold.
	ErrInsufficientBuyback = errors.New("insufficient buyback capacity")

	// ErrInsufficientAllowance is returned when the seller has not authorized enough tokens.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInsufficientSurplus is returned when the buyback obligation exceeds the wei reserve.
	ErrInsufficientSurplus = errors.New("insufficient surplus")

	// ErrUnderCapitalized is returned when a price change would leave the desk insolvent.
	ErrUnderCapitalized = errors.New("under-capitalized for new sell value")

	// ErrWrongToken is returned when a rescue targets the desk's own managed token.
	ErrWrongToken = errors.New("cannot rescue the managed token")

	// ErrTransferFailed is returned when an external ledger refuses a transfer.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInsufficientFunds is returned by the currency bank when an account cannot cover a move.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrZeroPrice is returned when a price ratio would be set below one.
	ErrZeroPrice = errors.New("price ratio must be at least one")
)

// FailureReason maps a call failure to a short stable label for metrics.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrNotPaused):
		return "not_paused"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotPendingOwner):
		return "not_pending_owner"
	case errors.Is(err, ErrInsufficientInventory):
		return "inventory"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, ErrInsufficientBuyback):
		return "buyback"
	case errors.Is(err, ErrInsufficientAllowance):
		return "allowance"
	case errors.Is(err, ErrInsufficientSurplus):
		return "surplus"
	case errors.Is(err, ErrUnderCapitalized):
		return "undercapitalized"
	case errors.Is(err, ErrWrongToken):
		return "wrong_token"
	case errors.Is(err, ErrTransferFailed):
		return "transfer"
	case errors.Is(err, ErrInsufficientFunds):
		return "funds"
	case errors.Is(err, ErrZeroPrice):
		return "zero_price"
	default:
		return "arithmetic"
	}
}
