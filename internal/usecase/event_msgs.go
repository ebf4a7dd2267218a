package usecase

// OrderPaidMsg rides the Rabbit exchange from the resolver to the
// notification dispatcher.
type OrderPaidMsg struct {
	OrderID   string `json:"orderId"`
	ClientID  string `json:"clientId"`
	Status    string `json:"status"`
	TotalSats uint64 `json:"totalSats"`
	Method    string `json:"method"`
	Provider  string `json:"provider"`
}

// OrderSettledEvent is the Kafka audit record published once per terminal
// settlement.
type OrderSettledEvent struct {
	OrderID    string `json:"orderId"`
	ClientID   string `json:"clientId"`
	Status     string `json:"status"`
	RawStatus  string `json:"rawStatus"`
	Provider   string `json:"provider"`
	Method     string `json:"method"`
	TotalSats  uint64 `json:"totalSats"`
	OccurredAt int64  `json:"occurredAt"` // unix seconds
}
