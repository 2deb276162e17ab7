package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	ProductionBaseURL = "https://payment.zarinpal.com"
	SandboxBaseURL    = "https://sandbox.zarinpal.com"

	requestPath = "/pg/v4/payment/request.json"
	verifyPath  = "/pg/v4/payment/verify.json"
	startPath   = "/pg/StartPay/"
)

type Config struct {
	MerchantID string
	BaseURL    string
	Timeout    time.Duration
}

type ZarinpalClient struct {
	merchantID string
	baseURL    string
	httpClient *http.Client
}

func NewZarinpalClient(cfg Config) *ZarinpalClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = ProductionBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ZarinpalClient{
		merchantID: cfg.MerchantID,
		baseURL:    base,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type requestBody struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type verifyBody struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

// envelope is the common response shape. On failure data is an empty array
// and errors is an object, on success it is the other way round.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type responseData struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Authority string      `json:"authority"`
	RefID     json.Number `json:"ref_id"`
	CardPan   string      `json:"card_pan"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *ZarinpalClient) RequestPayment(ctx context.Context, req PaymentRequest) (PaymentSession, error) {
	const op = "payment request"

	data, err := c.post(ctx, op, requestPath, requestBody{
		MerchantID:  c.merchantID,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return PaymentSession{}, err
	}
	if data.Code != codeSuccess || data.Authority == "" {
		return PaymentSession{}, &Error{Op: op, Code: data.Code, Message: fallback(data.Message, "payment request failed")}
	}

	return PaymentSession{
		Token:       data.Authority,
		RedirectURL: c.RedirectURL(data.Authority),
	}, nil
}

func (c *ZarinpalClient) VerifyPayment(ctx context.Context, amount int64, token string) (Verification, error) {
	const op = "payment verify"

	data, err := c.post(ctx, op, verifyPath, verifyBody{
		MerchantID: c.merchantID,
		Amount:     amount,
		Authority:  token,
	})
	if err != nil {
		return Verification{}, err
	}

	var outcome Outcome
	switch data.Code {
	case codeSuccess:
		outcome = OutcomeVerified
	case codeAlreadyVerified:
		outcome = OutcomeAlreadyVerified
	default:
		return Verification{}, &Error{Op: op, Code: data.Code, Message: fallback(data.Message, "payment verification failed")}
	}

	return Verification{
		Outcome:     outcome,
		ReferenceID: data.RefID.String(),
		CardMask:    data.CardPan,
	}, nil
}

func (c *ZarinpalClient) RedirectURL(token string) string {
	return c.baseURL + startPath + token
}

func (c *ZarinpalClient) post(ctx context.Context, op, path string, body any) (*responseData, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode body: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
		}
		return nil, fmt.Errorf("%s: do request: %w", op, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
		}
		return nil, &Error{Op: op, Code: resp.StatusCode, Message: genericMessage(op)}
	}

	if gwErr := decodeErrors(env.Errors); gwErr != nil {
		return nil, &Error{Op: op, Code: gwErr.Code, Message: fallback(gwErr.Message, genericMessage(op))}
	}

	var data responseData
	if len(env.Data) == 0 || env.Data[0] != '{' {
		return nil, &Error{Op: op, Code: resp.StatusCode, Message: genericMessage(op)}
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Op: op, Code: resp.StatusCode, Message: genericMessage(op)}
	}
	return &data, nil
}

// decodeErrors returns nil when raw holds no error. Both an object and an
// array of objects are accepted.
func decodeErrors(raw json.RawMessage) *responseError {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '{':
		var e responseError
		if err := json.Unmarshal(raw, &e); err != nil || (e.Code == 0 && e.Message == "") {
			return nil
		}
		return &e
	case '[':
		var list []responseError
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return nil
		}
		return &list[0]
	}
	return nil
}

func genericMessage(op string) string {
	if op == "payment verify" {
		return "payment verification failed"
	}
	return "payment request failed"
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
