package engine

import (
	"sync"

	"github.com/holiman/uint256"

	"tokendesk/internal/domain"
)

// Command kinds. One kind per public operation; the journal record kind
// a command produces lives in domain (domain.Kind*).
const (
	cmdBuy         = "buy"
	cmdReceive     = "receive_currency"
	cmdSell        = "sell"
	cmdApprove     = "approve"
	cmdCashout     = "cashout"
	cmdAdjust      = "adjust_prices"
	cmdPause       = "pause"
	cmdUnpause     = "unpause"
	cmdClose       = "close"
	cmdRescue      = "rescue_token"
	cmdOfferOwner  = "transfer_ownership"
	cmdAcceptOwner = "accept_ownership"
)

// command is one atomic call envelope traveling through the inbox.
// value carries attached wei (a buy's payment, an adjustment's top-up);
// the loop banks it before dispatch and refunds it on failure.
type command struct {
	kind      string
	caller    string
	party     string // spender, nominee
	amount    *uint256.Int
	value     *uint256.Int
	bound     *uint256.Int // slippage guard; nil means no bound
	buyCost   *uint256.Int
	sellValue *uint256.Int
	stray     domain.TokenLedger

	reply chan result
}

type result struct {
	receipt *domain.Receipt
	err     error
}

// Envelopes are pooled; the reply channel survives recycling.
var commandPool = sync.Pool{
	New: func() interface{} {
		return &command{reply: make(chan result, 1)}
	},
}

func acquireCommand(kind, caller string) *command {
	cmd := commandPool.Get().(*command)
	cmd.kind = kind
	cmd.caller = caller
	return cmd
}

func releaseCommand(cmd *command) {
	cmd.kind = ""
	cmd.caller = ""
	cmd.party = ""
	cmd.amount = nil
	cmd.value = nil
	cmd.bound = nil
	cmd.buyCost = nil
	cmd.sellValue = nil
	cmd.stray = nil

	commandPool.Put(cmd)
}

// orZero normalizes optional amounts: nil reads as zero.
func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return uint256.NewInt(0)
	}
	return x
}
