package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Position is a single holding on an account.
type Position struct {
	AccountID            string  `json:"accountId"`
	AccountName          string  `json:"accountName"`
	AccountType          string  `json:"accountType"`
	OrderbookID          string  `json:"orderbookId"`
	Name                 string  `json:"name"`
	Volume               float64 `json:"volume"`
	AverageAcquiredPrice float64 `json:"averageAcquiredPrice"`
	AcquiredValue        float64 `json:"acquiredValue"`
	LastPrice            float64 `json:"lastPrice"`
	Value                float64 `json:"value"`
	ProfitPercent        float64 `json:"profitPercent"`
	Currency             string  `json:"currency"`
}

// PositionsResponse from GET /_api/position-data/positions
type PositionsResponse struct {
	InstrumentPositions []InstrumentPositions `json:"instrumentPositions"`
	TotalOwnCapital     float64               `json:"totalOwnCapital"`
	TotalBuyingPower    float64               `json:"totalBuyingPower"`
	TotalBalance        float64               `json:"totalBalance"`
	TotalProfit         float64               `json:"totalProfit"`
	TotalProfitPercent  float64               `json:"totalProfitPercent"`
}

// InstrumentPositions groups positions by instrument type.
type InstrumentPositions struct {
	InstrumentType string     `json:"instrumentType"`
	Positions      []Position `json:"positions"`
	TotalValue     float64    `json:"totalValue"`
	TotalProfit    float64    `json:"totalProfitValue"`
}

// Account summarizes one account in the overview.
type Account struct {
	AccountID          string  `json:"accountId"`
	AccountType        string  `json:"accountType"`
	Name               string  `json:"name"`
	OwnCapital         float64 `json:"ownCapital"`
	TotalBalance       float64 `json:"totalBalance"`
	BuyingPower        float64 `json:"buyingPower"`
	TotalProfit        float64 `json:"totalProfit"`
	PerformancePercent float64 `json:"performancePercent"`
	Tradable           bool    `json:"tradable"`
}

// OverviewResponse from GET /_api/account-overview/overview
type OverviewResponse struct {
	Accounts                []Account `json:"accounts"`
	TotalOwnCapital         float64   `json:"totalOwnCapital"`
	TotalBalance            float64   `json:"totalBalance"`
	TotalBuyingPower        float64   `json:"totalBuyingPower"`
	TotalPerformancePercent float64   `json:"totalPerformancePercent"`
}

// AccountOverviewResponse from GET /_api/account-overview/accounts/{id}
type AccountOverviewResponse struct {
	Account
	AvailableSuperLoanAmount float64 `json:"availableSuperLoanAmount"`
	CreditLimit              float64 `json:"creditLimit"`
	InterestRate             float64 `json:"interestRate"`
	Overdrawn                bool    `json:"overdrawn"`
}

// Order is a working order on an account.
type Order struct {
	OrderID     string  `json:"orderId"`
	AccountID   string  `json:"accountId"`
	OrderbookID string  `json:"orderbookId"`
	Type        string  `json:"type"` // "BUY" or "SELL"
	Status      string  `json:"status"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	ValidUntil  string  `json:"validUntil"`
}

// Deal is an executed trade awaiting settlement.
type Deal struct {
	DealID      string  `json:"dealId"`
	OrderID     string  `json:"orderId"`
	AccountID   string  `json:"accountId"`
	OrderbookID string  `json:"orderbookId"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	DealTime    string  `json:"dealTime"`
}

// DealsAndOrdersResponse from GET /_api/deals-and-orders
type DealsAndOrdersResponse struct {
	Orders []Order `json:"orders"`
	Deals  []Deal  `json:"deals"`
}

// Transaction is a single booked account event.
type Transaction struct {
	TransactionID    string  `json:"id"`
	AccountID        string  `json:"accountId"`
	TransactionType  string  `json:"transactionType"`
	Description      string  `json:"description"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	VerificationDate string  `json:"verificationDate"`
}

// TransactionsResponse from GET /_api/account/transactions/{accountId}
type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// TransactionsOptions filters a transactions request.
type TransactionsOptions struct {
	From    string // inclusive date, YYYY-MM-DD
	To      string // inclusive date, YYYY-MM-DD
	MaxRows int
}

// GetPositions fetches all positions visible to the session.
func (c *Client) GetPositions(ctx context.Context, s SessionAuth) (*PositionsResponse, error) {
	var resp PositionsResponse
	if err := c.getAuthenticated(ctx, s, PathPositions, nil, &resp); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return &resp, nil
}

// GetOverview fetches the all-accounts overview.
func (c *Client) GetOverview(ctx context.Context, s SessionAuth) (*OverviewResponse, error) {
	var resp OverviewResponse
	if err := c.getAuthenticated(ctx, s, PathOverview, nil, &resp); err != nil {
		return nil, fmt.Errorf("get overview: %w", err)
	}
	return &resp, nil
}

// GetAccountOverview fetches the overview for a single account.
func (c *Client) GetAccountOverview(ctx context.Context, s SessionAuth, accountID string) (*AccountOverviewResponse, error) {
	var resp AccountOverviewResponse
	path := fmt.Sprintf(PathAccountOverview, url.PathEscape(accountID))
	if err := c.getAuthenticated(ctx, s, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get account overview %s: %w", accountID, err)
	}
	return &resp, nil
}

// GetDealsAndOrders fetches working orders and unsettled deals.
func (c *Client) GetDealsAndOrders(ctx context.Context, s SessionAuth) (*DealsAndOrdersResponse, error) {
	var resp DealsAndOrdersResponse
	if err := c.getAuthenticated(ctx, s, PathDealsAndOrders, nil, &resp); err != nil {
		return nil, fmt.Errorf("get deals and orders: %w", err)
	}
	return &resp, nil
}

// GetTransactions fetches booked transactions for an account.
func (c *Client) GetTransactions(ctx context.Context, s SessionAuth, accountID string, opts TransactionsOptions) (*TransactionsResponse, error) {
	query := url.Values{}
	if opts.From != "" {
		query.Set("from", opts.From)
	}
	if opts.To != "" {
		query.Set("to", opts.To)
	}
	if opts.MaxRows > 0 {
		query.Set("maxRows", strconv.Itoa(opts.MaxRows))
	}

	var resp TransactionsResponse
	path := fmt.Sprintf(PathTransactions, url.PathEscape(accountID))
	if err := c.getAuthenticated(ctx, s, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get transactions %s: %w", accountID, err)
	}
	return &resp, nil
}

// InstrumentResponse from GET /_api/market-guide/{type}/{id}
type InstrumentResponse struct {
	OrderbookID    string  `json:"orderbookId"`
	Name           string  `json:"name"`
	InstrumentType string  `json:"instrumentType"`
	Currency       string  `json:"currency"`
	LastPrice      float64 `json:"lastPrice"`
	ChangePercent  float64 `json:"changePercent"`
	Tradable       bool    `json:"tradable"`
}

// GetInstrument fetches market-guide data for a single instrument.
func (c *Client) GetInstrument(ctx context.Context, s SessionAuth, typ InstrumentType, orderbookID string) (*InstrumentResponse, error) {
	var resp InstrumentResponse
	path := fmt.Sprintf(PathInstrument, url.PathEscape(string(typ)), url.PathEscape(orderbookID))
	if err := c.getAuthenticated(ctx, s, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get instrument %s/%s: %w", typ, orderbookID, err)
	}
	return &resp, nil
}
