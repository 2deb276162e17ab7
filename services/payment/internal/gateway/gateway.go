package gateway

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// MinorUnitMultiplier converts a display amount (Toman) into the unit the
// gateway charges in (Rial).
const MinorUnitMultiplier = 10

// Currency is the unit gateway amounts are expressed in.
var Currency = currency.MustParseISO("IRR")

// CallbackStatusOK is the outcome flag the gateway appends to the callback
// URL when the customer completed the payment page.
const CallbackStatusOK = "OK"

const (
	codeSuccess         = 100
	codeAlreadyVerified = 101
)

var ErrTimeout = errors.New("gateway timeout")

func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(MinorUnitMultiplier)).Round(0).IntPart()
}

type PaymentRequest struct {
	Amount      int64
	CallbackURL string
	Description string
	Metadata    map[string]string
}

type PaymentSession struct {
	Token       string
	RedirectURL string
}

type Outcome int

const (
	OutcomeVerified Outcome = iota + 1
	OutcomeAlreadyVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeAlreadyVerified:
		return "already_verified"
	}
	return "unknown"
}

type Verification struct {
	Outcome     Outcome
	ReferenceID string
	CardMask    string
}

// Error is a response from the gateway that was not a success.
// Message is the gateway's own text when it sent one.
type Error struct {
	Op      string
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Op, e.Message, e.Code)
}
