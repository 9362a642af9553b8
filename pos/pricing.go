package pos

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is either an absolute amount or a percentage of the subtotal.
// The zero value means no discount.
type Discount struct {
	Amount  Money
	Percent decimal.Decimal
	IsPct   bool
}

// ParseDiscount accepts "" (none), "25" / "25.50" (absolute) or "10%".
func ParseDiscount(s string) (Discount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Discount{}, nil
	}
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		p, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return Discount{}, invalid("discount", "%q is not a percentage", s)
		}
		if p.IsNegative() {
			return Discount{}, invalid("discount", "percentage must not be negative")
		}
		return Discount{Percent: p, IsPct: true}, nil
	}
	m, err := ParseMoney(s)
	if err != nil {
		return Discount{}, invalid("discount", "%q is not an amount", s)
	}
	if m.IsNegative() {
		return Discount{}, invalid("discount", "amount must not be negative")
	}
	return Discount{Amount: m}, nil
}

// Resolve converts the discount into an absolute amount for subtotal.
// The result is clamped to the subtotal so the discounted subtotal is
// never negative.
func (d Discount) Resolve(subtotal Money) Money {
	v := d.Amount
	if d.IsPct {
		v = subtotal.Mul(d.Percent.Div(hundred))
	}
	return v.Max(Money{}).Min(subtotal)
}

// Totals are the monetary fields of a new order.
type Totals struct {
	Subtotal      Money
	DiscountValue Money
	Tax           Money
	Total         Money
	TaxRate       decimal.Decimal
}

// Price computes the totals for a sale.
//
//	subtotal   = Σ unitPrice × qty
//	discounted = max(subtotal − discount, 0)
//	tax        = discounted × rate   (VAT enabled only)
//	total      = max(discounted + tax, 0)
func Price(lines []MenuLine, discount Discount, vatEnabled bool) (Totals, error) {
	if err := validateLines(lines); err != nil {
		return Totals{}, err
	}

	var subtotal Money
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}

	discountValue := discount.Resolve(subtotal)
	discounted := subtotal.Sub(discountValue).Max(Money{})

	var tax Money
	rate := decimal.Zero
	if vatEnabled {
		rate = DefaultTaxRate
		tax = discounted.Mul(rate)
	}

	return Totals{
		Subtotal:      subtotal,
		DiscountValue: discountValue,
		Tax:           tax,
		Total:         discounted.Add(tax).Max(Money{}),
		TaxRate:       rate,
	}, nil
}

func validateLines(lines []MenuLine) error {
	if len(lines) == 0 {
		return invalid("items", "an order needs at least one line")
	}
	for i, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return invalid("items", "line %d has no product id", i+1)
		}
		if l.Quantity < 1 {
			return invalid("items", "line %d quantity must be at least 1", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return invalid("items", "line %d unit price must not be negative", i+1)
		}
	}
	return nil
}
