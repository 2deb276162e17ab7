package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *ZarinpalClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewZarinpalClient(Config{MerchantID: "merchant-1", BaseURL: srv.URL, Timeout: time.Second})
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"100000", 1000000},
		{"0", 0},
		{"12.34", 123},
		{"12.35", 124},
		{"0.05", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.in)), tt.in)
	}
	assert.Equal(t, "IRR", Currency.String())
}

func TestRequestPaymentSuccess(t *testing.T) {
	var got requestBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, requestPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"code":100,"message":"Success","authority":"A0000000000000000000000000000wwOGYpd","fee_type":"Merchant","fee":100},"errors":[]}`))
	})

	sess, err := c.RequestPayment(context.Background(), PaymentRequest{
		Amount:      1000000,
		CallbackURL: "https://shop.example/payment/callback",
		Description: "Purchase of 1 products",
		Metadata:    map[string]string{"user_id": "u-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "merchant-1", got.MerchantID)
	assert.EqualValues(t, 1000000, got.Amount)
	assert.Equal(t, "u-1", got.Metadata["user_id"])
	assert.Equal(t, "A0000000000000000000000000000wwOGYpd", sess.Token)
	assert.Equal(t, c.baseURL+"/pg/StartPay/A0000000000000000000000000000wwOGYpd", sess.RedirectURL)
}

func TestRequestPaymentGatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "errors object",
			status:   http.StatusUnprocessableEntity,
			body:     `{"data":[],"errors":{"code":-9,"message":"The input params invalid, validation error.","validations":[]}}`,
			wantCode: -9,
			wantMsg:  "The input params invalid, validation error.",
		},
		{
			name:     "errors array",
			status:   http.StatusOK,
			body:     `{"data":[],"errors":[{"code":-10,"message":"Terminal is not valid"}]}`,
			wantCode: -10,
			wantMsg:  "Terminal is not valid",
		},
		{
			name:     "non success code without message",
			status:   http.StatusOK,
			body:     `{"data":{"code":-11},"errors":[]}`,
			wantCode: -11,
			wantMsg:  "payment request failed",
		},
		{
			name:     "not json",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			wantCode: http.StatusBadGateway,
			wantMsg:  "payment request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.RequestPayment(context.Background(), PaymentRequest{Amount: 10})
			var gwErr *Error
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.wantCode, gwErr.Code)
			assert.Equal(t, tt.wantMsg, gwErr.Message)
		})
	}
}

func TestVerifyPaymentOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Outcome
		wantRef string
	}{
		{"fresh", `{"data":{"code":100,"message":"Verified","card_pan":"502229******5995","ref_id":201},"errors":[]}`, OutcomeVerified, "201"},
		{"replayed", `{"data":{"code":101,"message":"Verified","card_pan":"502229******5995","ref_id":201},"errors":[]}`, OutcomeAlreadyVerified, "201"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verifyBody
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, verifyPath, r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(tt.body))
			})

			v, err := c.VerifyPayment(context.Background(), 1000000, "A-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Outcome)
			assert.Equal(t, tt.wantRef, v.ReferenceID)
			assert.Equal(t, "502229******5995", v.CardMask)
			assert.EqualValues(t, 1000000, got.Amount)
			assert.Equal(t, "A-1", got.Authority)
		})
	}
}

func TestVerifyPaymentRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[],"errors":{"code":-51,"message":"Session is not valid, session is not active paid try.","validations":[]}}`))
	})

	_, err := c.VerifyPayment(context.Background(), 10, "A-1")
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, -51, gwErr.Code)
	assert.Equal(t, "Session is not valid, session is not active paid try.", gwErr.Message)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestTimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewZarinpalClient(Config{MerchantID: "m", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.VerifyPayment(context.Background(), 10, "A-1")
	require.ErrorIs(t, err, ErrTimeout)

	var gwErr *Error
	assert.False(t, errors.As(err, &gwErr))
}

func TestContextDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewZarinpalClient(Config{MerchantID: "m", BaseURL: srv.URL, Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.RequestPayment(ctx, PaymentRequest{Amount: 10})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDefaultsAndSandbox(t *testing.T) {
	c := NewZarinpalClient(Config{MerchantID: "m"})
	assert.Equal(t, ProductionBaseURL, c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)

	c = NewZarinpalClient(Config{MerchantID: "m", BaseURL: SandboxBaseURL + "/"})
	assert.Equal(t, SandboxBaseURL+"/pg/StartPay/T", c.RedirectURL("T"))
}
