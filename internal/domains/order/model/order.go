package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The order store is owned by the commerce platform; this package only reads
// the snapshot the returns workflow needs. Orders are immutable once delivered.

const (
	OrderStatusDelivered = "delivered"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderItemNotFound = errors.New("order item not found")
)

// OrderSnapshot is the read-only view of an order used by refund computation
type OrderSnapshot struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderNumber string    `json:"order_number" db:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id" db:"customer_id"`
	Status      string    `json:"status" db:"status"`

	// Billing totals as originally charged
	SubtotalWithTax decimal.Decimal `json:"subtotal_with_tax" db:"subtotal_with_tax"`
	DiscountTotal   decimal.Decimal `json:"discount_total" db:"discount_total"`
	DeliveryCharge  decimal.Decimal `json:"delivery_charge" db:"delivery_charge"`

	// Jurisdiction inputs for the tax split
	WarehouseState string `json:"warehouse_state" db:"warehouse_state"`
	DeliveryState  string `json:"delivery_state" db:"delivery_state"`
	// Explicit interstate flag; when set it overrides the state comparison
	Interstate *bool `json:"interstate,omitempty" db:"interstate"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`

	Items []OrderItemSnapshot `json:"items" db:"-"`
}

// OrderItemSnapshot is one sold line with its tax configuration
type OrderItemSnapshot struct {
	ProductID        uuid.UUID        `json:"product_id" db:"product_id"`
	Name             string           `json:"name" db:"name"`
	Price            decimal.Decimal  `json:"price" db:"price"`
	Quantity         int              `json:"quantity" db:"quantity"`
	PriceIncludesTax bool             `json:"price_includes_tax" db:"price_includes_tax"`
	TaxName          *string          `json:"tax_name,omitempty" db:"tax_name"`
	TaxPercentage    *decimal.Decimal `json:"tax_percentage,omitempty" db:"tax_percentage"`
}

// IsReturnable reports whether a return may be opened against this order
func (o *OrderSnapshot) IsReturnable() bool {
	return o.Status == OrderStatusDelivered
}

// ItemByProductID looks up a sold line by product id
func (o *OrderSnapshot) ItemByProductID(productID uuid.UUID) *OrderItemSnapshot {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// ItemByName looks up a sold line by its display name, the last-resort
// match the tax resolver falls back to
func (o *OrderSnapshot) ItemByName(name string) *OrderItemSnapshot {
	for i := range o.Items {
		if o.Items[i].Name == name {
			return &o.Items[i]
		}
	}
	return nil
}
