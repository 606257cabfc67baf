package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tax := Percent(decimal.NewFromInt(10000), decimal.NewFromInt(18))
	assert.True(t, tax.Equal(decimal.NewFromInt(1800)))

	tax = Percent(decimal.RequireFromString("333.33"), decimal.RequireFromString("18"))
	assert.Equal(t, "60.00", tax.StringFixed(2))
}

func TestScale(t *testing.T) {
	assert.True(t, HasValidScale(decimal.RequireFromString("10.25")))
	assert.True(t, HasValidScale(decimal.RequireFromString("10")))
	assert.False(t, HasValidScale(decimal.RequireFromString("10.255")))
}

func TestRepeatedPartialPaymentsHaveNoDrift(t *testing.T) {
	total := decimal.RequireFromString("100.00")
	paid := decimal.Zero
	for i := 0; i < 10; i++ {
		paid = paid.Add(decimal.RequireFromString("10.10"))
	}
	assert.Equal(t, "101.00", paid.StringFixed(2))
	assert.True(t, paid.Sub(total).Equal(decimal.RequireFromString("1")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₹11,800.00", Format(decimal.NewFromInt(11800), Symbol("")))
	assert.Equal(t, "$0.50", Format(decimal.RequireFromString("0.5"), Symbol("usd")))
	assert.Equal(t, "₹1,234,567.90", Format(decimal.RequireFromString("1234567.895"), "₹"))
	assert.Equal(t, "-$12.50", Format(decimal.RequireFromString("-12.5"), "$"))
	// past 2^53, where a float64 would drop the paise
	assert.Equal(t, "₹90,071,992,547,409.93", Format(decimal.RequireFromString("90071992547409.93"), "₹"))
}

func TestParse(t *testing.T) {
	d, err := Parse(" 5000.00 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(5000)))

	_, err = Parse("five")
	assert.Error(t, err)
}
