package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Client interface {
	RequestPayment(ctx context.Context, req PaymentRequest) (PaymentSession, error)
	VerifyPayment(ctx context.Context, amount int64, token string) (Verification, error)
}

type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// BreakerClient fails payment requests fast while the gateway keeps failing.
// Verification always goes through: by the time it runs the intent is
// already consumed.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[PaymentSession]
}

func NewBreakerClient(next Client, cfg BreakerConfig, logger *slog.Logger) *BreakerClient {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[PaymentSession](gobreaker.Settings{
		Name:        "zarinpal.request",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("gateway_breaker_state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerClient{next: next, cb: cb}
}

func (b *BreakerClient) RequestPayment(ctx context.Context, req PaymentRequest) (PaymentSession, error) {
	sess, err := b.cb.Execute(func() (PaymentSession, error) {
		return b.next.RequestPayment(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return PaymentSession{}, fmt.Errorf("payment request: gateway unavailable: %w", err)
	}
	return sess, err
}

func (b *BreakerClient) VerifyPayment(ctx context.Context, amount int64, token string) (Verification, error) {
	return b.next.VerifyPayment(ctx, amount, token)
}

// isHealthy treats a rejection carrying a gateway business code (always
// negative) as an answer from a working gateway.
func isHealthy(err error) bool {
	if err == nil {
		return true
	}
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Code < 0
}
