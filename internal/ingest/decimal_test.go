package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.35", "0.35"},
		{"0,35", "0.35"},
		{"-0,5", "-0.5"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1.234.567", "1234567"},
		{"1,234,567", "1234567"},
		{"12%", "12"},
		{" 0,35 ", "0.35"},
		{"CLP 1.234,56", "1234.56"},
		{"0,35 aprox", "0.35"},
	}
	for _, tc := range cases {
		got, ok, err := ToDecimal(tc.in)
		require.NoError(t, err, "entrada %q", tc.in)
		require.True(t, ok, "entrada %q", tc.in)
		assert.Equal(t, tc.want, got.String(), "entrada %q", tc.in)
	}
}

func TestToDecimalVacio(t *testing.T) {
	_, ok, err := ToDecimal("")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ToDecimal("   ")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestToDecimalInvalido(t *testing.T) {
	for _, in := range []string{"abc", "%", "n/a"} {
		_, _, err := ToDecimal(in)
		require.Error(t, err, "entrada %q", in)
		assert.ErrorIs(t, err, ErrInvalidDecimal)
		assert.Contains(t, err.Error(), in)
	}
}

func TestQuantizeFactor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.12344", "0.1234"},
		{"0.12346", "0.1235"},
		// redondeo bancario en el punto medio
		{"0.12345", "0.1234"},
		{"0.12355", "0.1236"},
		{"1", "1"},
	}
	for _, tc := range cases {
		d, ok, err := ToDecimal(tc.in)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tc.want, QuantizeFactor(d).String(), "entrada %q", tc.in)
	}
}
