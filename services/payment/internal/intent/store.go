package intent

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
)

var (
	ErrDuplicateToken = errors.New("intent already staged for token")
	ErrNotFound       = errors.New("intent not found")
)

// Store stages pending intents keyed by gateway token.
//
// TakeIfPresent removes and returns the intent in one step. For a given token
// at most one caller ever gets the intent; everyone else gets ErrNotFound.
// An intent past its deadline is removed and reported as ErrNotFound.
type Store interface {
	Put(ctx context.Context, p domain.PendingIntent) error
	TakeIfPresent(ctx context.Context, token string) (domain.PendingIntent, error)
	Sweep(ctx context.Context) (int, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
