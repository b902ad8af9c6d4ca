package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// Journal record kinds. One kind per committed command; replay
// re-executes them in sequence order to rebuild the desk.
const (
	KindGenesis       = "genesis"
	KindFunded        = "funded"
	KindBought        = "bought"
	KindSold          = "sold"
	KindPriceChanged  = "price_changed"
	KindApproved      = "approved"
	KindCashedOut     = "cashed_out"
	KindPaused        = "paused"
	KindUnpaused      = "unpaused"
	KindClosed        = "closed"
	KindTokenRescued  = "token_rescued"
	KindOwnerOffered  = "ownership_offered"
	KindOwnerAccepted = "ownership_transferred"
)

// Receipt describes one committed state change. The engine turns it into
// a journal record and an audit event; fields not relevant to the kind
// stay nil.
type Receipt struct {
	Kind      string
	Actor     string
	Party     string // counterparty: spender, nominee, rescued token addr
	Amount    *uint256.Int
	Value     *uint256.Int
	BuyCost   *uint256.Int
	SellValue *uint256.Int
}

// TradeRecord is one append-only journal row. Amounts are stored as
// decimal text; sqlite integers cannot hold 256-bit values.
type TradeRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EventID      string    `gorm:"uniqueIndex;size:36" json:"event_id"`
	Seq          uint64    `gorm:"uniqueIndex" json:"seq"`
	Kind         string    `gorm:"index;size:24" json:"kind"`
	Actor        string    `gorm:"index;size:64" json:"actor"`
	Counterparty string    `gorm:"size:64" json:"counterparty,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Value        string    `json:"value,omitempty"`
	BuyCost      string    `json:"buy_cost,omitempty"`
	SellValue    string    `json:"sell_value,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
