package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressValidate(t *testing.T) {
	ok := Address{Street: " 12 Vali Asr ", City: "Tehran", Region: "Tehran", PostalCode: "1234567890"}
	require.NoError(t, ok.Normalize().Validate())
	assert.Equal(t, "12 Vali Asr", ok.Normalize().Street)

	tests := []struct {
		name  string
		addr  Address
		field string
	}{
		{"no street", Address{Street: "  ", City: "c", Region: "r", PostalCode: "p"}, "street"},
		{"no city", Address{Street: "s", Region: "r", PostalCode: "p"}, "city"},
		{"no region", Address{Street: "s", City: "c", PostalCode: "p"}, "region"},
		{"no postal code", Address{Street: "s", City: "c", Region: "r"}, "postal_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.addr.Normalize().Validate()
			require.ErrorIs(t, err, ErrInvalidAddress)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("%w: x", ErrInvalidPrice)))
	assert.True(t, IsValidation(ErrEmptyCart))
	assert.False(t, IsValidation(ErrGateway))
	assert.False(t, IsValidation(ErrIntentExpiredOrConsumed))
}

func TestExpiredAndLineTotal(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := PendingIntent{Deadline: now.Add(time.Minute)}
	assert.False(t, p.Expired(now))
	assert.True(t, p.Expired(now.Add(time.Minute)))

	l := ValidatedLine{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, decimal.RequireFromString("59.97").Equal(l.Total()))
}
