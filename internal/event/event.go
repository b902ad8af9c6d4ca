// Package event defines the audit events the engine emits for every
// committed command. Events go to the journal mapping and the feed;
// amounts travel as decimal strings so 256-bit values survive JSON.
package event

// Event is one committed audit record.
type Event interface {
	GetKind() string
	GetSeq() uint64
}

// BaseEvent carries the identity and ordering shared by all events.
type BaseEvent struct {
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"`
	Kind string `json:"kind"`
	Ts   int64  `json:"ts"` // unix microseconds
}

// GetSeq returns the engine-assigned sequence number.
func (b *BaseEvent) GetSeq() uint64 { return b.Seq }

// GetKind returns the record kind.
func (b *BaseEvent) GetKind() string { return b.Kind }

// BoughtEvent records one buy settlement.
type BoughtEvent struct {
	BaseEvent
	Buyer   string `json:"buyer"`
	BuyCost string `json:"buy_cost"`
	Amount  string `json:"amount"`
	Paid    string `json:"paid"`
}

// SoldEvent records one buyback settlement.
type SoldEvent struct {
	BaseEvent
	Seller    string `json:"seller"`
	SellValue string `json:"sell_value"`
	Amount    string `json:"amount"`
	Value     string `json:"value"`
}

// PriceChangedEvent records an owner price adjustment. Values are the
// effective ratios after zero-means-keep resolution.
type PriceChangedEvent struct {
	BaseEvent
	NewBuyCost   string `json:"new_buy_cost"`
	NewSellValue string `json:"new_sell_value"`
}

// LifecycleEvent records the colder host commands: approvals, cashouts,
// pause flips, close, rescues, funding and ownership changes.
type LifecycleEvent struct {
	BaseEvent
	Actor  string `json:"actor"`
	Party  string `json:"party,omitempty"`
	Amount string `json:"amount,omitempty"`
	Value  string `json:"value,omitempty"`
}
