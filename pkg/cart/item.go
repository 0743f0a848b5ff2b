package cart

import (
	"github.com/shopspring/decimal"

	"github.com/greenbasket/storefront/pkg/api"
)

// LineItem is one product in the cart. Its JSON form is the persisted
// format.
type LineItem struct {
	ProductID  int64   `json:"id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Unit       string  `json:"unit"`
	PhotoURL   string  `json:"photo_url,omitempty"`
	SellerID   int64   `json:"farmer_id"`
	SellerName string  `json:"farmer_username,omitempty"`
}

// Subtotal returns price x quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(li.UnitPrice).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Product is what the cart needs to know about a product being added.
// Missing optional fields default to zero values.
type Product struct {
	ID         int64
	Name       string
	Price      float64
	Unit       string
	PhotoURL   string
	SellerID   int64
	SellerName string
}

// FromAPI converts a catalog product.
func FromAPI(p api.Product) Product {
	return Product{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Unit:       p.Unit,
		PhotoURL:   p.PhotoURL,
		SellerID:   p.FarmerID,
		SellerName: p.FarmerUsername,
	}
}

func (p Product) lineItem() LineItem {
	price := p.Price
	if price < 0 {
		price = 0
	}
	return LineItem{
		ProductID:  p.ID,
		Name:       p.Name,
		UnitPrice:  price,
		Quantity:   1,
		Unit:       p.Unit,
		PhotoURL:   p.PhotoURL,
		SellerID:   p.SellerID,
		SellerName: p.SellerName,
	}
}

// Snapshot is the observable state of the cart.
type Snapshot struct {
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func snapshotOf(items []LineItem) Snapshot {
	cp := make([]LineItem, len(items))
	copy(cp, items)
	return Snapshot{
		Items:     cp,
		Total:     total(items),
		ItemCount: itemCount(items),
	}
}

func total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.Subtotal())
	}
	return sum
}

func itemCount(items []LineItem) int {
	n := 0
	for _, li := range items {
		n += li.Quantity
	}
	return n
}
