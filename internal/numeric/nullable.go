package numeric

import "github.com/shopspring/decimal"

// Known wraps a value as a present NullDecimal.
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// Unknown is the absent valuation.
func Unknown() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// SumNullable adds the values, returning Unknown as soon as any term is unknown. The empty
// sum is a known zero.
func SumNullable(values ...decimal.NullDecimal) decimal.NullDecimal {
	total := zero
	for _, v := range values {
		if !v.Valid {
			return Unknown()
		}
		total = total.Add(v.Decimal)
	}
	return Known(total)
}
