package domain

// DeskStatus is a point-in-time view of the desk for read models,
// the feed and post-mortem dumps. All amounts are decimal strings.
type DeskStatus struct {
	Owner           string `json:"owner"`
	Paused          bool   `json:"paused"`
	Closed          bool   `json:"closed"`
	BuyCost         string `json:"buy_cost"`
	SellValue       string `json:"sell_value"`
	NetAmountBought string `json:"net_amount_bought"`
	TokenReserve    string `json:"token_reserve"`
	WeiReserve      string `json:"wei_reserve"`
	Obligation      string `json:"obligation"`
	Surplus         string `json:"surplus"`
	LacksFunds      bool   `json:"lacks_funds"`
	LastSeq         uint64 `json:"last_seq"`
}
