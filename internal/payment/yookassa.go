package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const yooKassaDefaultBaseURL = "https://api.yookassa.ru/v3"

// YooKassaClient implements the two-stage card flow: a hold is a payment
// created with capture:false, finalized later via the capture endpoint.
// Amounts on the wire are major-unit decimal strings with two digits.
type YooKassaClient struct {
	shopID    string
	secretKey string
	returnURL string
	baseURL   string
	client    *http.Client
}

func NewYooKassaClient(shopID, secretKey, returnURL string, timeout time.Duration) *YooKassaClient {
	return &YooKassaClient{
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		baseURL:   yooKassaDefaultBaseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at a different API host. Used by tests.
func (c *YooKassaClient) WithBaseURL(baseURL string) *YooKassaClient {
	c.baseURL = baseURL
	return c
}

type yooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooKassaPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (c *YooKassaClient) CreateHold(ctx context.Context, orderID uuid.UUID, amountMinor int64, description string) (*Hold, error) {
	if c.shopID == "" || c.secretKey == "" {
		return nil, ErrConfigMissing
	}

	body := map[string]interface{}{
		"amount":  yooKassaAmount{Value: majorUnits(amountMinor), Currency: "RUB"},
		"capture": false,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": c.returnURL,
		},
		"description": description,
		"metadata":    map[string]string{"order_id": orderID.String()},
	}

	// The order id doubles as the idempotence key: retrying a hold for the
	// same order must not open a second one on the provider side.
	raw, err := c.post(ctx, "/payments", orderID.String(), body)
	if err != nil {
		return nil, err
	}

	var resp yooKassaPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: response missing payment id", ErrUnavailable)
	}

	return &Hold{
		ProviderID:      resp.ID,
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
		Metadata:        string(raw),
	}, nil
}

func (c *YooKassaClient) Capture(ctx context.Context, providerID string, amountMinor int64) error {
	if c.shopID == "" || c.secretKey == "" {
		return ErrConfigMissing
	}
	body := map[string]interface{}{
		"amount": yooKassaAmount{Value: majorUnits(amountMinor), Currency: "RUB"},
	}
	_, err := c.post(ctx, "/payments/"+providerID+"/capture", uuid.NewString(), body)
	return err
}

func (c *YooKassaClient) Refund(ctx context.Context, providerID string, amountMinor int64) error {
	if c.shopID == "" || c.secretKey == "" {
		return ErrConfigMissing
	}
	body := map[string]interface{}{
		"payment_id": providerID,
		"amount":     yooKassaAmount{Value: majorUnits(amountMinor), Currency: "RUB"},
	}
	_, err := c.post(ctx, "/refunds", uuid.NewString(), body)
	return err
}

func (c *YooKassaClient) post(ctx context.Context, path, idempotenceKey string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotenceKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: yookassa returned %d", ErrUnavailable, resp.StatusCode)
	}
	return raw, nil
}

// majorUnits renders minor units as the decimal string YooKassa expects,
// e.g. 115000 -> "1150.00".
func majorUnits(amountMinor int64) string {
	return fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100)
}
