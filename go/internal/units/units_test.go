package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneEther() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
}

func TestParseDisplay_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2", "2"},
		{"2.0", "2"},
		{"0.5", "0.5"},
		{".5", "0.5"},
		{"5.", "5"},
		{" 1.25 ", "1.25"},
		{"0", "0"},
		{"0.000000000000000001", "0.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDisplay(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseDisplay_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", ".", "1.2.3", "1..2", "-1", "abc", "1e5", "1,5", "+2"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDisplay(in)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestParseDisplay_TooPrecise(t *testing.T) {
	_, err := ParseDisplay("0.0000000000000000001")
	assert.ErrorIs(t, err, ErrTooPrecise)
}

func TestToSmallest(t *testing.T) {
	v, err := ToSmallest(decimal.RequireFromString("2.0"))
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(2), oneEther()).String(), v.String())

	v, err = ToSmallest(decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	assert.Equal(t, "250000000000000000", v.String())

	_, err = ToSmallest(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseToSmallest(t *testing.T) {
	v, d, err := ParseToSmallest("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())
	assert.Equal(t, "1.5", d.String())

	_, _, err = ParseToSmallest("1.2.3")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestToDisplayAndFormat(t *testing.T) {
	assert.Equal(t, "1.0", Format(oneEther()))
	assert.Equal(t, "0.25", Format(big.NewInt(250000000000000000)))
	assert.Equal(t, "0.0", Format(nil))
	assert.True(t, ToDisplay(oneEther()).Equal(decimal.NewFromInt(1)))
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"1", "0.1", "123.456", "0.000000000000000001"} {
		v, d, err := ParseToSmallest(in)
		require.NoError(t, err)
		assert.True(t, ToDisplay(v).Equal(d), in)
	}
}

func TestParseSmallest(t *testing.T) {
	v, err := ParseSmallest("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, oneEther().String(), v.String())

	v, err = ParseSmallest("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())

	_, err = ParseSmallest("0x10")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
