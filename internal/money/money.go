// Package money keeps currency arithmetic on exact decimals with two places.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Places is the number of minor-unit digits stored for every amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// HasValidScale reports whether d has no more than two decimal places.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Places))
}

// Parse reads a user-supplied amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// Percent returns rate percent of base, rounded.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(rate).Div(hundred))
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Symbol looks up the display symbol of an ISO currency code, defaulting to ₹.
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(code)]; ok {
		return s
	}
	return "₹"
}

// Format renders an amount with a symbol and digit grouping, e.g. ₹11,800.00.
// Only the whole part is grouped; it goes through the printer as an int64 so
// the digits stay exact. The fraction is taken from the fixed-point string.
func Format(amount decimal.Decimal, symbol string) string {
	r := Round(amount)
	abs := r.Abs()
	fixed := abs.StringFixed(Places)

	sign := ""
	if r.IsNegative() {
		sign = "-"
	}
	p := message.NewPrinter(language.English)
	return sign + symbol + p.Sprint(number.Decimal(abs.IntPart())) + fixed[len(fixed)-Places-1:]
}
