package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals are the derived monetary fields of a quote or invoice.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Money rounds an amount to cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal is quantity * unit price rounded to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return Money(quantity.Mul(unitPrice))
}

// DiscountAmount applies a discount to a pre-tax subtotal. Fixed discounts
// never exceed the subtotal.
func DiscountAmount(subtotal decimal.Decimal, discount *DiscountCode) decimal.Decimal {
	if discount == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch discount.Type {
	case DiscountPercentage:
		amount = Money(subtotal.Mul(discount.Value).Div(hundred))
	case DiscountFixed:
		amount = decimal.Min(discount.Value, subtotal)
	}
	return Money(decimal.Min(amount, subtotal))
}

// ComputeTotals sums line totals, applies the discount, then taxes the
// discounted subtotal at taxRate percent.
func ComputeTotals(lineTotals []decimal.Decimal, discount *DiscountCode, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(lt)
	}
	subtotal = Money(subtotal)

	discountAmount := DiscountAmount(subtotal, discount)
	taxable := subtotal.Sub(discountAmount)
	tax := Money(taxable.Mul(taxRate).Div(hundred))

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      tax,
		TotalAmount:    Money(taxable.Add(tax)),
	}
}
