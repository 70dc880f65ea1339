package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const cloudPaymentsDefaultBaseURL = "https://api.cloudpayments.ru"

// CloudPaymentsClient holds via the auth endpoint, finalizes via confirm
// and reverses via refund. Amounts are sent in minor units (kopecks).
type CloudPaymentsClient struct {
	publicID  string
	apiSecret string
	baseURL   string
	client    *http.Client
}

func NewCloudPaymentsClient(publicID, apiSecret string, timeout time.Duration) *CloudPaymentsClient {
	return &CloudPaymentsClient{
		publicID:  publicID,
		apiSecret: apiSecret,
		baseURL:   cloudPaymentsDefaultBaseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at a different API host. Used by tests.
func (c *CloudPaymentsClient) WithBaseURL(baseURL string) *CloudPaymentsClient {
	c.baseURL = baseURL
	return c
}

type cloudPaymentsResponse struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
	Model   struct {
		TransactionID int64  `json:"TransactionId"`
		Status        string `json:"Status"`
		AcsURL        string `json:"AcsUrl"`
	} `json:"Model"`
}

func (c *CloudPaymentsClient) CreateHold(ctx context.Context, orderID uuid.UUID, amountMinor int64, description string) (*Hold, error) {
	if c.publicID == "" || c.apiSecret == "" {
		return nil, ErrConfigMissing
	}

	body := map[string]interface{}{
		"Amount":      amountMinor,
		"Currency":    "RUB",
		"InvoiceId":   orderID.String(),
		"Description": description,
	}
	raw, resp, err := c.post(ctx, "/payments/cards/auth", body)
	if err != nil {
		return nil, err
	}
	if resp.Model.TransactionID == 0 {
		return nil, fmt.Errorf("%w: response missing transaction id", ErrUnavailable)
	}

	return &Hold{
		ProviderID:      strconv.FormatInt(resp.Model.TransactionID, 10),
		ConfirmationURL: resp.Model.AcsURL,
		Metadata:        string(raw),
	}, nil
}

func (c *CloudPaymentsClient) Capture(ctx context.Context, providerID string, amountMinor int64) error {
	if c.publicID == "" || c.apiSecret == "" {
		return ErrConfigMissing
	}
	transactionID, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad transaction id %q", ErrUnavailable, providerID)
	}
	_, _, err = c.post(ctx, "/payments/confirm", map[string]interface{}{
		"TransactionId": transactionID,
		"Amount":        amountMinor,
	})
	return err
}

func (c *CloudPaymentsClient) Refund(ctx context.Context, providerID string, amountMinor int64) error {
	if c.publicID == "" || c.apiSecret == "" {
		return ErrConfigMissing
	}
	transactionID, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad transaction id %q", ErrUnavailable, providerID)
	}
	_, _, err = c.post(ctx, "/payments/refund", map[string]interface{}{
		"TransactionId": transactionID,
		"Amount":        amountMinor,
	})
	return err
}

func (c *CloudPaymentsClient) post(ctx context.Context, path string, body interface{}) ([]byte, *cloudPaymentsResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.SetBasicAuth(c.publicID, c.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: cloudpayments returned %d", ErrUnavailable, httpResp.StatusCode)
	}

	var resp cloudPaymentsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !resp.Success {
		return nil, nil, fmt.Errorf("%w: cloudpayments rejected the request", ErrUnavailable)
	}
	return raw, &resp, nil
}
