package distribution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func alloc(amounts ...string) []Allocation {
	items := make([]Allocation, len(amounts))
	for i, a := range amounts {
		items[i] = Allocation{ItemID: int64(i + 1), Amount: dec(a)}
	}
	return items
}

func sum(shares []decimal.Decimal) decimal.Decimal {
	s := decimal.Zero
	for _, v := range shares {
		s = s.Add(v)
	}
	return s
}

func TestDistribute_Proportional(t *testing.T) {
	shares, err := Distribute(alloc("1000", "2000", "3000"), dec("120"), false)
	require.NoError(t, err)

	assert.True(t, dec("20.0000").Equal(shares[0]), "got %s", shares[0])
	assert.True(t, dec("40.0000").Equal(shares[1]), "got %s", shares[1])
	assert.True(t, dec("60.0000").Equal(shares[2]), "got %s", shares[2])
	assert.True(t, dec("120").Equal(sum(shares)))
}

func TestDistribute_EqualSplitRemainderOnLast(t *testing.T) {
	shares, err := Distribute(alloc("0", "0", "0"), dec("100"), false)
	require.NoError(t, err)

	assert.True(t, dec("33.3333").Equal(shares[0]), "got %s", shares[0])
	assert.True(t, dec("33.3333").Equal(shares[1]), "got %s", shares[1])
	assert.True(t, dec("33.3334").Equal(shares[2]), "got %s", shares[2])
	assert.True(t, dec("100").Equal(sum(shares)))
}

func TestDistribute_SingleItem(t *testing.T) {
	shares, err := Distribute(alloc("5000"), dec("17.8342"), false)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.True(t, dec("17.8342").Equal(shares[0]))
}

func TestDistribute_SellNegatesAfterRounding(t *testing.T) {
	shares, err := Distribute(alloc("1000", "2000"), dec("99.9999"), true)
	require.NoError(t, err)

	for _, s := range shares {
		assert.True(t, s.Sign() < 0, "sell share must be negative, got %s", s)
	}
	assert.True(t, dec("-99.9999").Equal(sum(shares)))
}

func TestDistribute_MissingUnitsIsRetryableNoop(t *testing.T) {
	_, err := Distribute(alloc("1000"), decimal.Zero, false)
	assert.ErrorIs(t, err, ErrNoUnits)

	_, err = Distribute(alloc("1000"), dec("-5"), false)
	assert.ErrorIs(t, err, ErrNoUnits)

	// A later poll with a valid value is not blocked by the earlier no-op.
	shares, err := Distribute(alloc("1000"), dec("10"), false)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(shares[0]))
}

func TestDistribute_EmptyBatch(t *testing.T) {
	_, err := Distribute(nil, dec("10"), false)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestDistribute_ConservationAcrossAwkwardRatios(t *testing.T) {
	cases := []struct {
		name    string
		amounts []string
		total   string
	}{
		{"thirds", []string{"1", "1", "1"}, "1"},
		{"sevenths", []string{"700", "1100", "1300", "1700"}, "123.4567"},
		{"tiny total", []string{"5000", "3000"}, "0.0001"},
		{"mixed zero amounts", []string{"0", "2500", "0", "7500"}, "42.5"},
		{"many items", []string{"10", "20", "30", "40", "50", "60", "70"}, "999.9999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shares, err := Distribute(alloc(tc.amounts...), dec(tc.total), false)
			require.NoError(t, err)
			assert.True(t, dec(tc.total).Equal(sum(shares)),
				"sum %s != total %s", sum(shares), tc.total)
			for _, s := range shares {
				assert.True(t, s.Exponent() >= -UnitScale,
					"share %s exceeds persisted precision", s)
			}
		})
	}
}

func TestUnitPrice(t *testing.T) {
	p := UnitPrice(dec("101.2345"))
	require.NotNil(t, p)
	assert.True(t, dec("101.2345").Equal(*p))

	assert.Nil(t, UnitPrice(decimal.Zero))
	assert.Nil(t, UnitPrice(dec("-1")))
}
