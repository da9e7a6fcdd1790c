package domain

import "time"

type Team struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	League    string    `json:"league"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// Jersey is one design of one team for one season. Deleting it removes its variants.
type Jersey struct {
	ID          uint      `json:"id"`
	TeamID      uint      `json:"team_id"`
	TeamName    string    `json:"team_name,omitempty"`
	Name        string    `json:"name"`
	Season      string    `json:"season"`
	Type        string    `json:"type"`
	Supplier    string    `json:"supplier"`
	CostPrice   Money     `json:"cost_price"`
	RetailPrice Money     `json:"retail_price"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	SleeveHalf = "H"
	SleeveFull = "F"
)

// Variant is a sellable size/sleeve combination of a jersey with its own stock.
type Variant struct {
	ID                uint      `json:"id"`
	JerseyID          uint      `json:"jersey_id"`
	Size              string    `json:"size"`
	Sleeve            string    `json:"sleeve"`
	SKU               string    `json:"sku"`
	StockQuantity     int       `json:"stock_quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	StockVersion      int64     `json:"stock_version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (v Variant) IsLowStock() bool {
	return v.StockQuantity <= v.LowStockThreshold
}

// VariantDetail is the quick-view projection of a variant.
type VariantDetail struct {
	Variant
	JerseyName       string `json:"jersey_name"`
	Season           string `json:"season"`
	Type             string `json:"type"`
	RetailPrice      Money  `json:"retail_price"`
	TeamName         string `json:"team_name"`
	TotalJerseyStock int    `json:"total_jersey_stock"`
	IsLowStock       bool   `json:"is_low_stock"`
}

type LowStockAlert struct {
	VariantID         uint   `json:"variant_id"`
	JerseyID          uint   `json:"jersey_id"`
	SKU               string `json:"sku"`
	Size              string `json:"size"`
	Sleeve            string `json:"sleeve"`
	StockQuantity     int    `json:"stock_quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	JerseyName        string `json:"jersey_name"`
	TeamName          string `json:"team_name"`
}

type Customer struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// SkuSeed is what the encoder needs to relearn a minted team code from an existing variant.
type SkuSeed struct {
	TeamName string
	Season   string
	Type     string
	Size     string
	Sleeve   string
	SKU      string
}
