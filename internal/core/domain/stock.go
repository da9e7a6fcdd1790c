package domain

// StockLevel is the ledger's view of one variant counter.
type StockLevel struct {
	SKU       string
	JerseyID  uint
	Quantity  int
	Threshold int
	Version   int64 // bumped on every committed change
}

func (l StockLevel) IsLow() bool {
	return l.Quantity <= l.Threshold
}
