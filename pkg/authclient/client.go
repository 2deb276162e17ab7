package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrRejected means the auth service refused the refresh token. The caller
// should drop its session instead of retrying.
var ErrRejected = errors.New("refresh token rejected")

const refreshPath = "/auth/refresh"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// RefreshResponse mirrors the auth service refresh payload. Expiries are unix
// seconds.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccessExp    int64  `json:"access_exp"`
	RefreshExp   int64  `json:"refresh_exp"`
}

func (c *Client) RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*RefreshResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("refresh: build request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
	if accessToken != "" {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("refresh: unexpected status %d", resp.StatusCode)
	}

	var out RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("refresh: decode: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("refresh: empty access token")
	}
	return &out, nil
}
