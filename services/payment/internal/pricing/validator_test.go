package pricing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	prices map[uuid.UUID]string
	err    error
	calls  int
}

func (f *fakeCatalog) ProductPrice(_ context.Context, id uuid.UUID) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	p, ok := f.prices[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return p, nil
}

var decimalEq = cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })

func TestValidateUsesAuthoritativePrices(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	catalog := &fakeCatalog{prices: map[uuid.UUID]string{a: "50000", b: "12.50"}}
	v := NewValidator(catalog)

	tampered := decimal.NewFromInt(1)
	lines, total, err := v.Validate(context.Background(), []domain.CartLine{
		{ProductID: a, Quantity: 2, ClientPrice: &tampered},
		{ProductID: b, Quantity: 4},
	})
	require.NoError(t, err)

	want := []domain.ValidatedLine{
		{ProductID: a, Quantity: 2, UnitPrice: decimal.NewFromInt(50000)},
		{ProductID: b, Quantity: 4, UnitPrice: decimal.RequireFromString("12.5")},
	}
	if diff := cmp.Diff(want, lines, decimalEq); diff != "" {
		t.Fatalf("validated lines mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, decimal.NewFromInt(100050).Equal(total), total.String())
}

func TestValidateRandomCartsMatchCatalogTotal(t *testing.T) {
	for i := 0; i < 20; i++ {
		catalog := &fakeCatalog{prices: map[uuid.UUID]string{}}
		var lines []domain.CartLine
		want := decimal.Zero

		for j := 0; j < gofakeit.Number(1, 6); j++ {
			id := uuid.New()
			price := decimal.NewFromFloat(gofakeit.Price(1, 100000)).Round(2)
			qty := gofakeit.Number(1, 9)
			catalog.prices[id] = price.StringFixed(2)

			claimed := price.Add(decimal.NewFromInt(int64(gofakeit.Number(-50, 50))))
			lines = append(lines, domain.CartLine{ProductID: id, Quantity: qty, ClientPrice: &claimed})
			want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}

		_, total, err := NewValidator(catalog).Validate(context.Background(), lines)
		require.NoError(t, err)
		assert.True(t, want.Equal(total), "want %s got %s", want, total)
	}
}

func TestValidateFailures(t *testing.T) {
	known := uuid.New()

	tests := []struct {
		name    string
		prices  map[uuid.UUID]string
		lookErr error
		lines   []domain.CartLine
		wantErr error
	}{
		{name: "empty cart", wantErr: domain.ErrEmptyCart},
		{
			name:    "unknown product",
			lines:   []domain.CartLine{{ProductID: uuid.New(), Quantity: 1}},
			wantErr: domain.ErrProductNotFound,
		},
		{
			name:    "nil product id",
			lines:   []domain.CartLine{{Quantity: 1}},
			wantErr: domain.ErrProductNotFound,
		},
		{
			name:    "zero quantity",
			prices:  map[uuid.UUID]string{known: "10"},
			lines:   []domain.CartLine{{ProductID: known, Quantity: 0}},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			prices:  map[uuid.UUID]string{known: "10"},
			lines:   []domain.CartLine{{ProductID: known, Quantity: -2}},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "malformed price",
			prices:  map[uuid.UUID]string{known: "ten"},
			lines:   []domain.CartLine{{ProductID: known, Quantity: 1}},
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "negative price",
			prices:  map[uuid.UUID]string{known: "-1"},
			lines:   []domain.CartLine{{ProductID: known, Quantity: 1}},
			wantErr: domain.ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(&fakeCatalog{prices: tt.prices, err: tt.lookErr})
			lines, total, err := v.Validate(context.Background(), tt.lines)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsValidation(err))
			assert.Nil(t, lines)
			assert.True(t, total.IsZero())
		})
	}
}

func TestValidateStopsAtFirstMissingProduct(t *testing.T) {
	known := uuid.New()
	catalog := &fakeCatalog{prices: map[uuid.UUID]string{known: "5"}}

	_, _, err := NewValidator(catalog).Validate(context.Background(), []domain.CartLine{
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: known, Quantity: 1},
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 1, catalog.calls)
}

func TestValidateLookupFaultIsNotValidation(t *testing.T) {
	v := NewValidator(&fakeCatalog{err: errors.New("connection refused")})
	_, _, err := v.Validate(context.Background(), []domain.CartLine{{ProductID: uuid.New(), Quantity: 1}})
	require.Error(t, err)
	assert.False(t, domain.IsValidation(err))
}

func TestParsePrice(t *testing.T) {
	for _, raw := range []string{"0", "50000", "19.99", " 7.5 "} {
		_, err := ParsePrice(raw)
		assert.NoError(t, err, raw)
	}
	for _, raw := range []string{"", "abc", "-0.01", "1e3", "NaN", "1,000"} {
		_, err := ParsePrice(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidPrice, raw)
	}
}
