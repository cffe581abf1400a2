package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nowpayments API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, apiKey string) *Client {
	if host == "" {
		host = "https://api.nowpayments.io"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// PaymentID tolerates both representations the provider uses: a JSON number
// in older responses, a string in newer ones.
type PaymentID string

func (p *PaymentID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*p = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*p = PaymentID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*p = PaymentID(n.String())
	return nil
}

func (p PaymentID) String() string {
	return string(p)
}

type CreatePaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id,omitempty"`
	OrderDescription string  `json:"order_description,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
	CustomerEmail    string  `json:"customer_email,omitempty"`
}

type CreatePaymentResponse struct {
	PaymentID     PaymentID       `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PayAmount     float64         `json:"pay_amount"`
	PayCurrency   string          `json:"pay_currency"`
	PriceAmount   float64         `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	Raw           json.RawMessage `json:"-"`
}

func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if req.PriceAmount <= 0 {
		return nil, fmt.Errorf("price_amount is required")
	}
	if strings.TrimSpace(req.PayCurrency) == "" {
		return nil, fmt.Errorf("pay_currency is required")
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/v1/payment", req)
	if err != nil {
		return nil, err
	}
	out := &CreatePaymentResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}
	if out.PaymentID == "" {
		return nil, fmt.Errorf("payment id missing in response")
	}
	out.Raw = body
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v := strings.TrimSpace(c.apiKey); v != "" {
		req.Header.Set("x-api-key", v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
