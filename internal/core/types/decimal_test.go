package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound_HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"2.345":   "2.35",
		"-2.345":  "-2.35",
		"2.344":   "2.34",
		"0.005":   "0.01",
		"-0.005":  "-0.01",
		"100":     "100",
		"99.9949": "99.99",
	}
	for in, want := range cases {
		got := Round(MustMoney(in))
		assert.True(t, MustMoney(want).Equal(got), "round(%s) = %s, want %s", in, got, want)
	}
}

func TestQuantity_ParseAndDecimal(t *testing.T) {
	q := MustQuantity("3.5")
	assert.Equal(t, Quantity(35_000), q)
	assert.Equal(t, "3.5000", q.String())
	assert.True(t, MustMoney("3.5").Equal(q.Decimal()))

	neg := MustQuantity("-0.25")
	assert.Equal(t, Quantity(-2_500), neg)
	assert.Equal(t, Quantity(2_500), neg.Abs())
	assert.Equal(t, NewQuantity(10), MustQuantity("10"))
}

func TestQuantity_JSON(t *testing.T) {
	var payload struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.25, "b": "-2"}`), &payload))
	assert.Equal(t, Quantity(12_500), payload.A)
	assert.Equal(t, Quantity(-20_000), payload.B)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1.25, "b": -2}`, string(out))
}
