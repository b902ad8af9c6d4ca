package event

import (
	"sync"
)

// Pools for the settlement hotpath events. Buys and sells dominate the
// command mix; recycling their events keeps GC pressure flat under
// sustained traffic.
//
// Usage:
//
//	ev := AcquireBoughtEvent()
//	ev.Buyer = "bob"
//	// ... journal, fan out ...
//	ReleaseBoughtEvent(ev) // do not retain after release
var boughtPool = sync.Pool{
	New: func() interface{} {
		return &BoughtEvent{}
	},
}

// AcquireBoughtEvent gets a BoughtEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireBoughtEvent() *BoughtEvent {
	return boughtPool.Get().(*BoughtEvent)
}

// ReleaseBoughtEvent resets the event and returns it to the pool.
func ReleaseBoughtEvent(ev *BoughtEvent) {
	if ev == nil {
		return
	}
	ev.ID = ""
	ev.Seq = 0
	ev.Kind = ""
	ev.Ts = 0
	ev.Buyer = ""
	ev.BuyCost = ""
	ev.Amount = ""
	ev.Paid = ""

	boughtPool.Put(ev)
}

var soldPool = sync.Pool{
	New: func() interface{} {
		return &SoldEvent{}
	},
}

// AcquireSoldEvent gets a SoldEvent from the pool.
func AcquireSoldEvent() *SoldEvent {
	return soldPool.Get().(*SoldEvent)
}

// ReleaseSoldEvent resets the event and returns it to the pool.
func ReleaseSoldEvent(ev *SoldEvent) {
	if ev == nil {
		return
	}
	ev.ID = ""
	ev.Seq = 0
	ev.Kind = ""
	ev.Ts = 0
	ev.Seller = ""
	ev.SellValue = ""
	ev.Amount = ""
	ev.Value = ""

	soldPool.Put(ev)
}

// Warmup pre-allocates pooled events to avoid first-trade allocation
// spikes at startup.
func Warmup() {
	const batchSize = 1000

	bought := make([]*BoughtEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		bought = append(bought, AcquireBoughtEvent())
	}
	for _, ev := range bought {
		ReleaseBoughtEvent(ev)
	}

	sold := make([]*SoldEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		sold = append(sold, AcquireSoldEvent())
	}
	for _, ev := range sold {
		ReleaseSoldEvent(ev)
	}
}
