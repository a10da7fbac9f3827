package clients

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

// DefaultRazorpayURL is the public API endpoint.
const DefaultRazorpayURL = "https://api.razorpay.com"

// RazorpayClient talks to the payment gateway's orders API over plain HTTPS.
type RazorpayClient struct {
	base     *BaseClient
	keyID    string
	currency string
}

type razorpayOrder struct {
	ID       string            `json:"id,omitempty"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Status   string            `json:"status,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// NewRazorpayClient returns a client authenticated with the key pair.
func NewRazorpayClient(baseURL, keyID, keySecret, currency string, httpClient HTTPDoer) (*RazorpayClient, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	if baseURL == "" {
		baseURL = DefaultRazorpayURL
	}
	if currency == "" {
		currency = "INR"
	}
	return &RazorpayClient{
		base:     NewBaseClient(baseURL, httpClient).WithBasicAuth(keyID, keySecret),
		keyID:    keyID,
		currency: currency,
	}, nil
}

// CreateOrder opens an order for amount. The gateway works in minor units.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount money.Amount, receipt string, notes map[string]string) (*models.PaymentOrder, error) {
	req := razorpayOrder{
		Amount:   int64(amount),
		Currency: c.currency,
		Receipt:  receipt,
		Notes:    notes,
	}
	var resp razorpayOrder
	if err := c.base.DoJSON(ctx, http.MethodPost, "/v1/orders", req, &resp); err != nil {
		return nil, err
	}
	return c.toModel(resp), nil
}

// FetchOrder reads an order back, including the notes it was created with.
func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	var resp razorpayOrder
	if err := c.base.DoJSON(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return c.toModel(resp), nil
}

func (c *RazorpayClient) toModel(o razorpayOrder) *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:       o.ID,
		Amount:   money.Amount(o.Amount),
		Currency: o.Currency,
		Receipt:  o.Receipt,
		Status:   o.Status,
		Notes:    o.Notes,
		KeyID:    c.keyID,
	}
}
