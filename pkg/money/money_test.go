package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_NoPrecisionLoss(t *testing.T) {
	total := Sum(MustParse("9007199254740993"), MustParse("1"))
	assert.Equal(t, "9007199254740994", total.String())
}

func TestSum_BeyondUint64(t *testing.T) {
	a := MustParse("18446744073709551615")
	total := Sum(a, FromInt64(1), Amount{})
	assert.Equal(t, "18446744073709551616", total.String())
}

func TestAmount_ZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())
	assert.Equal(t, "5", a.Add(FromInt64(5)).String())
}

func TestAmount_MulDiv(t *testing.T) {
	assert.Equal(t, "33", FromInt64(100).MulDiv(1, 3).String())
	assert.Equal(t, "60", FromInt64(2).MulInt(30).String())
}

func TestAmount_Scan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("340282366920938463463374607431768211456")))
	assert.Equal(t, "340282366920938463463374607431768211456", a.String())

	require.NoError(t, a.Scan(int64(42)))
	assert.Equal(t, "42", a.String())

	require.NoError(t, a.Scan("60.000"))
	assert.Equal(t, "60", a.String())

	assert.Error(t, a.Scan(1.5))
	assert.Error(t, a.Scan("12.5"))
}

func TestAmount_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Price Amount `json:"price"`
	}{Price: MustParse("9007199254740993")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"9007199254740993"}`, string(data))

	var decoded struct {
		Price Amount `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":123}`), &decoded))
	assert.Equal(t, "123", decoded.Price.String())
}

func TestParseDecimal(t *testing.T) {
	a, err := ParseDecimal("12.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "12500000", a.String())

	_, err = ParseDecimal("0.0000001", 6)
	assert.Error(t, err)

	_, err = ParseDecimal("-1", 6)
	assert.Error(t, err)

	_, err = ParseDecimal("abc", 6)
	assert.Error(t, err)
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "12.5", FormatDecimal(FromInt64(12500000), 6))
	assert.Equal(t, "0", FormatDecimal(Amount{}, 18))
}

func TestRescale(t *testing.T) {
	assert.Equal(t, "2000000000000000000", Rescale(FromInt64(2000000), 6, 18).String())
	// quantization truncates sub-unit remainders
	assert.Equal(t, "1", Rescale(MustParse("1999999999999"), 18, 6).String())
	assert.Equal(t, "7", Rescale(FromInt64(7), 6, 6).String())
}
