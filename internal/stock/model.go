package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemQuantity is one item's current stock position.
type ItemQuantity struct {
	ItemID   int64           `json:"item_id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Statistics is the stock overview served to dashboards: overall totals
// plus the three top-N views warehouse staff act on.
type Statistics struct {
	GeneratedAt   time.Time       `json:"generated_at"`
	TotalItems    int64           `json:"total_items"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	Missing       []ItemQuantity  `json:"missing"`
	NeedsFill     []ItemQuantity  `json:"needs_fill"`
	MostInStock   []ItemQuantity  `json:"most_in_stock"`
}
