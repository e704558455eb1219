package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	orderModel "returns-backend/internal/domains/order/model"
	"returns-backend/internal/domains/returns/model"
)

// =====================================================
// TAX ALLOCATOR + REFUND CALCULATOR
// =====================================================
// Recomputes, at refund time, how much of the original payment corresponds to
// the returned lines: jurisdiction-correct GST split, tax-inclusive back-out,
// and proportional allocation of the order-level discount. Pure functions of
// persisted inputs; safe to run on any instance without coordination.

var (
	oneHundred = decimal.NewFromInt(100)
	two        = decimal.NewFromInt(2)
)

// LineComputation is the refund breakdown for a single return line.
// Monetary fields are rounded to 2 decimal places for reporting; the
// aggregate total is derived from unrounded sums to avoid cross-line drift.
type LineComputation struct {
	ItemID        uuid.UUID
	TaxableValue  decimal.Decimal
	CGST          decimal.Decimal
	SGST          decimal.Decimal
	IGST          decimal.Decimal
	GrossTotal    decimal.Decimal
	DiscountShare decimal.Decimal
	Refundable    decimal.Decimal

	grossRaw    decimal.Decimal
	discountRaw decimal.Decimal
}

// RefundComputation is the aggregate result over all submitted lines
type RefundComputation struct {
	Lines         []LineComputation
	ItemsGross    decimal.Decimal
	DiscountTotal decimal.Decimal
	DeliveryRef   decimal.Decimal
	// RefundableTotal is rounded to the nearest whole currency unit;
	// it is the authoritative upper bound for any refund event.
	RefundableTotal decimal.Decimal
	Interstate      bool
	// LowConfidence marks the intrastate fallback taken on missing state data
	LowConfidence bool
}

// ResolveInterstate determines the tax jurisdiction for the order.
// An explicit interstate flag on the order wins; otherwise the warehouse and
// delivery states are compared trimmed and case-insensitive. Missing state
// data falls back to intrastate treatment, flagged low-confidence.
func ResolveInterstate(order *orderModel.OrderSnapshot) (interstate bool, lowConfidence bool) {
	if order.Interstate != nil {
		return *order.Interstate, false
	}

	from := strings.TrimSpace(strings.ToLower(order.WarehouseState))
	to := strings.TrimSpace(strings.ToLower(order.DeliveryState))
	if from == "" || to == "" {
		log.Warn().
			Str("order_id", order.ID.String()).
			Str("warehouse_state", order.WarehouseState).
			Str("delivery_state", order.DeliveryState).
			Msg("missing state info, falling back to intrastate tax treatment")
		return false, true
	}

	return from != to, false
}

// ResolveTax finds the applicable tax rate for a return line.
// Priority order: the line's own tax info, then the original order line matched
// by product id, then by name. No silent zero-tax default: an unresolvable
// rate is a reportable MissingTaxInfo failure.
func ResolveTax(item model.ReturnItem, order *orderModel.OrderSnapshot) (*model.TaxInfo, error) {
	if tax := item.Tax(); tax != nil {
		return tax, nil
	}

	if order != nil {
		if sold := order.ItemByProductID(item.ProductID); sold != nil && sold.TaxPercentage != nil {
			name := ""
			if sold.TaxName != nil {
				name = *sold.TaxName
			}
			return &model.TaxInfo{Name: name, Percentage: *sold.TaxPercentage}, nil
		}
		if sold := order.ItemByName(item.Name); sold != nil && sold.TaxPercentage != nil {
			name := ""
			if sold.TaxName != nil {
				name = *sold.TaxName
			}
			return &model.TaxInfo{Name: name, Percentage: *sold.TaxPercentage}, nil
		}
	}

	return nil, model.NewReturnError(
		model.ErrCodeMissingTaxInfo,
		"no resolvable tax rate for line '"+item.Name+"'",
		model.ErrMissingTaxInfo,
	)
}

// ComputeRefund runs the full allocation over the given return lines.
// deliveryRefundable is policy: delivery charge is excluded unless enabled.
func ComputeRefund(
	items []model.ReturnItem,
	order *orderModel.OrderSnapshot,
	deliveryRefundable bool,
) (*RefundComputation, error) {
	interstate, lowConfidence := ResolveInterstate(order)

	result := &RefundComputation{
		Interstate:    interstate,
		LowConfidence: lowConfidence,
	}

	itemsGrossRaw := decimal.Zero

	for _, item := range items {
		tax, err := ResolveTax(item, order)
		if err != nil {
			return nil, err
		}

		line := computeLine(item, tax.Percentage, interstate)
		itemsGrossRaw = itemsGrossRaw.Add(line.grossRaw)
		result.Lines = append(result.Lines, line)
	}

	// Discount ratio over the whole order, applied proportionally to each
	// line's gross share
	ratio := decimal.Zero
	if order.DiscountTotal.GreaterThan(decimal.Zero) && order.SubtotalWithTax.GreaterThan(decimal.Zero) {
		ratio = order.DiscountTotal.Div(order.SubtotalWithTax)
	}

	discountRaw := decimal.Zero
	for i := range result.Lines {
		share := result.Lines[i].grossRaw.Mul(ratio)
		result.Lines[i].discountRaw = share
		result.Lines[i].DiscountShare = share.Round(2)
		result.Lines[i].Refundable = result.Lines[i].grossRaw.Sub(share).Round(2)
		discountRaw = discountRaw.Add(share)
	}

	deliveryRefund := decimal.Zero
	if deliveryRefundable {
		deliveryRefund = order.DeliveryCharge
	}

	result.ItemsGross = itemsGrossRaw.Round(2)
	result.DiscountTotal = discountRaw.Round(2)
	result.DeliveryRef = deliveryRefund.Round(2)

	// Grand total only is rounded to the whole currency unit
	result.RefundableTotal = itemsGrossRaw.Sub(discountRaw).Add(deliveryRefund).Round(0)

	return result, nil
}

// computeLine produces the taxable base, the jurisdiction split, and the
// gross total for a single line
func computeLine(item model.ReturnItem, ratePercent decimal.Decimal, interstate bool) LineComputation {
	qty := decimal.NewFromInt(int64(item.Quantity))
	lineAmount := item.Price.Mul(qty)

	rate := ratePercent.Div(oneHundred)

	var taxable decimal.Decimal
	if item.PriceIncludesTax {
		// Back out the taxable base: amount / (1 + rate)
		taxable = lineAmount.Div(decimal.NewFromInt(1).Add(rate))
	} else {
		taxable = lineAmount
	}

	taxAmount := taxable.Mul(rate)

	line := LineComputation{
		ItemID:       item.ID,
		TaxableValue: taxable.Round(2),
		CGST:         decimal.Zero,
		SGST:         decimal.Zero,
		IGST:         decimal.Zero,
	}

	if interstate {
		line.IGST = taxAmount.Round(2)
	} else {
		half := taxAmount.Div(two)
		line.CGST = half.Round(2)
		line.SGST = half.Round(2)
	}

	line.grossRaw = taxable.Add(taxAmount)
	line.GrossTotal = line.grossRaw.Round(2)

	return line
}

// ValidateRefundAmount checks a manually supplied partial refund amount
// against policy (positive whole currency units) and the computed upper bound.
func ValidateRefundAmount(requested, refundableTotal decimal.Decimal) error {
	if requested.LessThanOrEqual(decimal.Zero) || !requested.Equal(requested.Truncate(0)) {
		return model.NewReturnError(
			model.ErrCodeInvalidAmount,
			"refund amount must be a positive whole currency unit",
			model.ErrInvalidAmount,
		)
	}
	if requested.GreaterThan(refundableTotal) {
		return model.NewReturnError(
			model.ErrCodeAmountExceedsRefund,
			"requested amount "+requested.String()+" exceeds refundable total "+refundableTotal.String(),
			model.ErrAmountExceedsRefundable,
		)
	}
	return nil
}

// LineByItemID finds a computed line in the result
func (rc *RefundComputation) LineByItemID(itemID uuid.UUID) *LineComputation {
	for i := range rc.Lines {
		if rc.Lines[i].ItemID == itemID {
			return &rc.Lines[i]
		}
	}
	return nil
}
