package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/festpay/backend/internal/config"
)

// billSettledState is the provider state meaning the payer approved the
// push and the money moved.
const billSettledState = "processed"

// BillRequest is the eBilling bill creation payload.
type BillRequest struct {
	Amount        float64 `json:"amount"`
	Reference     string  `json:"reference"`
	Msisdn        string  `json:"payer_msisdn"`
	Email         string  `json:"payer_email"`
	Firstname     string  `json:"payer_firstname"`
	Lastname      string  `json:"payer_lastname"`
	PaymentSystem string  `json:"payment_system_name"`
	Description   string  `json:"description"`
}

// BillResponse is returned by bill creation.
type BillResponse struct {
	BillID string `json:"bill_id"`
	State  string `json:"state"`
}

// BillStatus is the provider's view of a bill when polled.
type BillStatus struct {
	BillID string  `json:"bill_id"`
	State  string  `json:"state"`
	Amount float64 `json:"amount"`
}

// EBillingClient talks to the external mobile-money provider.
type EBillingClient interface {
	CreateBill(ctx context.Context, req *BillRequest) (*BillResponse, error)
	GetBillStatus(ctx context.Context, billID string) (*BillStatus, error)
}

// HTTPEBillingClient is the production client: bounded timeout, bounded
// retries with backoff, basic auth against the provider.
type HTTPEBillingClient struct {
	cfg    *config.MobileMoneyConfig
	client *http.Client
}

func NewEBillingClient(cfg *config.MobileMoneyConfig) *HTTPEBillingClient {
	return &HTTPEBillingClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// CreateBill registers a payment push with the provider.
func (c *HTTPEBillingClient) CreateBill(ctx context.Context, req *BillRequest) (*BillResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode bill request: %w", err)
	}

	var resp BillResponse
	if err := c.doWithRetry(ctx, http.MethodPost, c.cfg.BaseURL+"/merchant/e_bills", body, &resp); err != nil {
		return nil, err
	}
	if resp.BillID == "" {
		return nil, fmt.Errorf("%w: provider returned no bill_id", ErrProviderUnavailable)
	}
	return &resp, nil
}

// GetBillStatus polls the provider for the current state of a bill.
func (c *HTTPEBillingClient) GetBillStatus(ctx context.Context, billID string) (*BillStatus, error) {
	var status BillStatus
	url := fmt.Sprintf("%s/merchant/e_bills/%s", c.cfg.BaseURL, billID)
	if err := c.doWithRetry(ctx, http.MethodGet, url, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPEBillingClient) doWithRetry(ctx context.Context, method, url string, body []byte, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
			case <-time.After(c.cfg.RetryBackoff):
			}
		}

		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("build provider request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(c.cfg.Username, c.cfg.SharedKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("[EBILLING] Attempt %d failed for %s %s: %v", attempt+1, method, url, err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("provider returned status %d", resp.StatusCode)
			log.Printf("[EBILLING] Attempt %d got %d for %s %s", attempt+1, resp.StatusCode, method, url)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// 4xx is a definitive answer, not an outage; retrying or
			// treating it as transient would poll forever.
			resp.Body.Close()
			return fmt.Errorf("%w: provider rejected request with status %d", ErrBillRejected, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: decode provider response: %v", ErrProviderUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}
