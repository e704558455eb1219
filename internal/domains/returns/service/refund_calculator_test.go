package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderModel "returns-backend/internal/domains/order/model"
	"returns-backend/internal/domains/returns/model"
)

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func boolPtr(b bool) *bool { return &b }

func taxedItem(price string, qty int, rate string, inclusive bool) model.ReturnItem {
	return model.ReturnItem{
		ID:               uuid.New(),
		ProductID:        uuid.New(),
		Name:             "item",
		Price:            decimal.RequireFromString(price),
		Quantity:         qty,
		PriceIncludesTax: inclusive,
		TaxName:          strPtr("GST 18%"),
		TaxPercentage:    decPtr(decimal.RequireFromString(rate)),
		ReturnStatus:     model.ItemStatusPending,
	}
}

func plainOrder() *orderModel.OrderSnapshot {
	return &orderModel.OrderSnapshot{
		ID:              uuid.New(),
		Status:          orderModel.OrderStatusDelivered,
		SubtotalWithTax: decimal.Zero,
		DiscountTotal:   decimal.Zero,
		DeliveryCharge:  decimal.Zero,
		WarehouseState:  "Karnataka",
		DeliveryState:   "Karnataka",
	}
}

func TestResolveInterstate(t *testing.T) {
	tests := []struct {
		name           string
		warehouseState string
		deliveryState  string
		explicit       *bool
		wantInterstate bool
		wantLowConf    bool
	}{
		{
			name:           "same state is intrastate",
			warehouseState: "Karnataka",
			deliveryState:  "Karnataka",
			wantInterstate: false,
		},
		{
			name:           "different states are interstate",
			warehouseState: "Karnataka",
			deliveryState:  "Maharashtra",
			wantInterstate: true,
		},
		{
			name:           "comparison ignores case and whitespace",
			warehouseState: "  karnataka ",
			deliveryState:  "KARNATAKA",
			wantInterstate: false,
		},
		{
			name:           "explicit flag overrides matching states",
			warehouseState: "Karnataka",
			deliveryState:  "Karnataka",
			explicit:       boolPtr(true),
			wantInterstate: true,
		},
		{
			name:           "missing delivery state falls back to intrastate",
			warehouseState: "Karnataka",
			deliveryState:  "",
			wantInterstate: false,
			wantLowConf:    true,
		},
		{
			name:           "both states missing falls back to intrastate",
			warehouseState: "",
			deliveryState:  "",
			wantInterstate: false,
			wantLowConf:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := plainOrder()
			order.WarehouseState = tt.warehouseState
			order.DeliveryState = tt.deliveryState
			order.Interstate = tt.explicit

			interstate, lowConf := ResolveInterstate(order)
			assert.Equal(t, tt.wantInterstate, interstate)
			assert.Equal(t, tt.wantLowConf, lowConf)
		})
	}
}

func TestResolveTax(t *testing.T) {
	rate := decimal.RequireFromString("18")

	t.Run("line carries its own rate", func(t *testing.T) {
		item := taxedItem("118", 1, "18", true)
		tax, err := ResolveTax(item, plainOrder())
		require.NoError(t, err)
		assert.True(t, rate.Equal(tax.Percentage))
		assert.Equal(t, "GST 18%", tax.Name)
	})

	t.Run("falls back to order line by product id", func(t *testing.T) {
		item := taxedItem("118", 1, "18", true)
		item.TaxName = nil
		item.TaxPercentage = nil

		order := plainOrder()
		order.Items = []orderModel.OrderItemSnapshot{{
			ProductID:     item.ProductID,
			Name:          "different name",
			TaxName:       strPtr("GST"),
			TaxPercentage: decPtr(rate),
		}}

		tax, err := ResolveTax(item, order)
		require.NoError(t, err)
		assert.True(t, rate.Equal(tax.Percentage))
	})

	t.Run("falls back to order line by name", func(t *testing.T) {
		item := taxedItem("118", 1, "18", true)
		item.TaxName = nil
		item.TaxPercentage = nil

		order := plainOrder()
		order.Items = []orderModel.OrderItemSnapshot{{
			ProductID:     uuid.New(),
			Name:          item.Name,
			TaxPercentage: decPtr(decimal.RequireFromString("12")),
		}}

		tax, err := ResolveTax(item, order)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("12").Equal(tax.Percentage))
	})

	t.Run("unresolvable rate is an error, never zero-tax", func(t *testing.T) {
		item := taxedItem("118", 1, "18", true)
		item.TaxName = nil
		item.TaxPercentage = nil

		_, err := ResolveTax(item, plainOrder())
		require.Error(t, err)

		var retErr *model.ReturnError
		require.True(t, errors.As(err, &retErr))
		assert.Equal(t, model.ErrCodeMissingTaxInfo, retErr.Code)
		assert.True(t, errors.Is(err, model.ErrMissingTaxInfo))
	})
}

func TestComputeRefund_InclusiveIntrastate(t *testing.T) {
	// 118 inclusive of 18% GST backs out to a taxable base of 100,
	// split evenly into CGST 9 + SGST 9 within the same state.
	item := taxedItem("118", 1, "18", true)
	order := plainOrder()

	result, err := ComputeRefund([]model.ReturnItem{item}, order, false)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, "100", line.TaxableValue.String())
	assert.Equal(t, "9", line.CGST.String())
	assert.Equal(t, "9", line.SGST.String())
	assert.True(t, line.IGST.IsZero())
	assert.Equal(t, "118", line.GrossTotal.String())
	assert.False(t, result.Interstate)
	assert.Equal(t, "118", result.RefundableTotal.String())
}

func TestComputeRefund_InclusiveInterstate(t *testing.T) {
	item := taxedItem("118", 1, "18", true)
	order := plainOrder()
	order.DeliveryState = "Maharashtra"

	result, err := ComputeRefund([]model.ReturnItem{item}, order, false)
	require.NoError(t, err)

	line := result.Lines[0]
	assert.Equal(t, "100", line.TaxableValue.String())
	assert.True(t, line.CGST.IsZero())
	assert.True(t, line.SGST.IsZero())
	assert.Equal(t, "18", line.IGST.String())
	assert.True(t, result.Interstate)
}

func TestComputeRefund_ExclusivePricing(t *testing.T) {
	// Tax-exclusive price: the line amount already is the taxable base
	item := taxedItem("100", 2, "18", false)
	order := plainOrder()

	result, err := ComputeRefund([]model.ReturnItem{item}, order, false)
	require.NoError(t, err)

	line := result.Lines[0]
	assert.Equal(t, "200", line.TaxableValue.String())
	assert.Equal(t, "18", line.CGST.String())
	assert.Equal(t, "18", line.SGST.String())
	assert.Equal(t, "236", line.GrossTotal.String())
	assert.Equal(t, "236", result.RefundableTotal.String())
}

func TestComputeRefund_DiscountAllocation(t *testing.T) {
	// 10% order-level discount (100 off 1000) allocates 10% of each
	// line's gross share: 236 gross loses 23.60.
	item := taxedItem("100", 2, "18", false)
	order := plainOrder()
	order.SubtotalWithTax = decimal.RequireFromString("1000")
	order.DiscountTotal = decimal.RequireFromString("100")

	result, err := ComputeRefund([]model.ReturnItem{item}, order, false)
	require.NoError(t, err)

	line := result.Lines[0]
	assert.Equal(t, "23.6", line.DiscountShare.String())
	assert.Equal(t, "212.4", line.Refundable.String())
	assert.Equal(t, "23.6", result.DiscountTotal.String())
	// 236 - 23.60 = 212.40, rounded to the whole unit
	assert.Equal(t, "212", result.RefundableTotal.String())
}

func TestComputeRefund_DeliveryChargePolicy(t *testing.T) {
	item := taxedItem("118", 1, "18", true)
	order := plainOrder()
	order.DeliveryCharge = decimal.RequireFromString("40")

	excluded, err := ComputeRefund([]model.ReturnItem{item}, order, false)
	require.NoError(t, err)
	assert.Equal(t, "118", excluded.RefundableTotal.String())
	assert.True(t, excluded.DeliveryRef.IsZero())

	included, err := ComputeRefund([]model.ReturnItem{item}, order, true)
	require.NoError(t, err)
	assert.Equal(t, "40", included.DeliveryRef.String())
	assert.Equal(t, "158", included.RefundableTotal.String())
}

func TestComputeRefund_WholeUnitGrandTotal(t *testing.T) {
	// Fractional gross totals round half away from zero at the grand
	// total only; per-line values keep two decimal places.
	item := taxedItem("100.50", 1, "18", false)
	order := plainOrder()

	result, err := ComputeRefund([]model.ReturnItem{item}, order, false)
	require.NoError(t, err)

	// 100.50 + 18.09 tax = 118.59 gross
	assert.Equal(t, "118.59", result.Lines[0].GrossTotal.String())
	assert.Equal(t, "119", result.RefundableTotal.String())
}

func TestComputeRefund_MultiLineAggregation(t *testing.T) {
	first := taxedItem("118", 1, "18", true)
	second := taxedItem("56", 2, "12", true)
	order := plainOrder()

	result, err := ComputeRefund([]model.ReturnItem{first, second}, order, false)
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)

	// 112 inclusive of 12% backs out to 100 taxable, 6 + 6 split
	assert.Equal(t, "100", result.Lines[1].TaxableValue.String())
	assert.Equal(t, "6", result.Lines[1].CGST.String())
	assert.Equal(t, "230", result.ItemsGross.String())
	assert.Equal(t, "230", result.RefundableTotal.String())

	found := result.LineByItemID(second.ID)
	require.NotNil(t, found)
	assert.Equal(t, "112", found.GrossTotal.String())
	assert.Nil(t, result.LineByItemID(uuid.New()))
}

func TestComputeRefund_MissingTaxInfo(t *testing.T) {
	item := taxedItem("118", 1, "18", true)
	item.TaxName = nil
	item.TaxPercentage = nil

	_, err := ComputeRefund([]model.ReturnItem{item}, plainOrder(), false)
	require.Error(t, err)

	var retErr *model.ReturnError
	require.True(t, errors.As(err, &retErr))
	assert.Equal(t, model.ErrCodeMissingTaxInfo, retErr.Code)
}

func TestValidateRefundAmount(t *testing.T) {
	bound := decimal.RequireFromString("500")

	tests := []struct {
		name     string
		amount   string
		wantCode string
	}{
		{name: "valid whole amount", amount: "500"},
		{name: "valid partial amount", amount: "1"},
		{name: "zero rejected", amount: "0", wantCode: model.ErrCodeInvalidAmount},
		{name: "negative rejected", amount: "-10", wantCode: model.ErrCodeInvalidAmount},
		{name: "fractional rejected", amount: "499.50", wantCode: model.ErrCodeInvalidAmount},
		{name: "over bound rejected", amount: "501", wantCode: model.ErrCodeAmountExceedsRefund},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRefundAmount(decimal.RequireFromString(tt.amount), bound)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var retErr *model.ReturnError
			require.True(t, errors.As(err, &retErr))
			assert.Equal(t, tt.wantCode, retErr.Code)
		})
	}
}
