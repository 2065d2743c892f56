package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// API paths.
const (
	PathCredentialLogin = "/_api/authentication/sessions/usercredentials"
	PathTOTPLogin       = "/_api/authentication/sessions/totp"
	PathPositions       = "/_api/position-data/positions"
	PathOverview        = "/_api/account-overview/overview"
	PathAccountOverview = "/_api/account-overview/accounts/%s"
	PathDealsAndOrders  = "/_api/deals-and-orders"
	PathTransactions    = "/_api/account/transactions/%s"
	PathInstrument      = "/_api/market-guide/%s/%s"
)

// CredentialLoginRequest is the body of the first login step.
type CredentialLoginRequest struct {
	Username           string `json:"username"`
	Password           string `json:"password"`
	MaxInactiveMinutes int    `json:"maxInactiveMinutes"`
}

// TwoFactorChallenge describes the second factor demanded by a successful
// credential login. Single-use: it is consumed by the TOTP confirmation.
type TwoFactorChallenge struct {
	TransactionID string `json:"transactionId"`
	Method        string `json:"method"`
}

// CredentialLoginResponse is the body of a successful first step.
type CredentialLoginResponse struct {
	TwoFactorLogin TwoFactorChallenge `json:"twoFactorLogin"`
}

// TOTPLoginRequest is the body of the second login step.
type TOTPLoginRequest struct {
	Method   string `json:"method"`
	TOTPCode string `json:"totpCode"`
}

// TOTPLoginResponse is the body of a successful second step. The security
// token arrives in a response header, not the body.
type TOTPLoginResponse struct {
	AuthenticationSession string `json:"authenticationSession"`
	PushSubscriptionID    string `json:"pushSubscriptionId"`
	CustomerID            string `json:"customerId"`
	RegistrationComplete  bool   `json:"registrationComplete"`
}

// LoginCredentials performs the credential step of the login sequence.
// No retry here; the authenticator owns the retry policy.
func (c *Client) LoginCredentials(ctx context.Context, req CredentialLoginRequest) (*CredentialLoginResponse, error) {
	body, _, err := c.do(ctx, http.MethodPost, PathCredentialLogin, nil, nil, req)
	if err != nil {
		return nil, fmt.Errorf("credential login: %w", err)
	}

	var resp CredentialLoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal credential login response: %w", err)
	}

	return &resp, nil
}

// ConfirmTOTP performs the second-factor step, correlating it with the
// credential login via the transaction header. Returns the response body and
// the security token extracted from the response headers.
func (c *Client) ConfirmTOTP(ctx context.Context, transactionID string, req TOTPLoginRequest) (*TOTPLoginResponse, string, error) {
	headers := http.Header{}
	headers.Set(HeaderTransaction, transactionID)

	body, respHeaders, err := c.do(ctx, http.MethodPost, PathTOTPLogin, nil, headers, req)
	if err != nil {
		return nil, "", fmt.Errorf("totp login: %w", err)
	}

	var resp TOTPLoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("unmarshal totp login response: %w", err)
	}

	securityToken := respHeaders.Get(HeaderSecurityToken)
	if securityToken == "" {
		return nil, "", fmt.Errorf("totp login: missing %s response header", HeaderSecurityToken)
	}

	return &resp, securityToken, nil
}
