package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"reconcile-service/internal/config"
	"reconcile-service/internal/payload"

	"github.com/pkg/errors"
)

const defaultTimeoutMs = 10_000

// LookupError reports a failed bank-transfer detail fetch. The delivery is
// dropped; the gateway's own redelivery is the recovery path.
type LookupError struct {
	PaymentID string
	Err       error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("bank transfer lookup for payment %s failed: %v", e.PaymentID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

type Client struct {
	client    *http.Client
	baseURL   string
	keyID     string
	keySecret string
	logger    *slog.Logger
}

func NewClient(cfg config.Gateway, logger *slog.Logger) *Client {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = defaultTimeoutMs
	}

	return &Client{
		client:    &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		logger:    logger,
	}
}

// FetchBankTransferDetail fetches the bank-transfer record behind a payment.
func (c *Client) FetchBankTransferDetail(ctx context.Context, paymentID string) (*payload.BankTransferDetail, error) {
	url := fmt.Sprintf("%s/payments/%s/bank_transfer", c.baseURL, paymentID)
	c.logger.InfoContext(ctx, "Fetching bank transfer detail", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LookupError{PaymentID: paymentID, Err: err}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Error fetching bank transfer detail", "error", err)
		return nil, &LookupError{PaymentID: paymentID, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Error reading response body", "error", err)
		return nil, &LookupError{PaymentID: paymentID, Err: err}
	}

	if resp.StatusCode >= 400 {
		c.logger.ErrorContext(ctx, "Received error response", "status", resp.Status)
		return nil, &LookupError{PaymentID: paymentID, Err: errors.Errorf("error response: %s", resp.Status)}
	}

	var detail payload.BankTransferDetail
	if err := json.Unmarshal(respBody, &detail); err != nil {
		return nil, &LookupError{PaymentID: paymentID, Err: errors.Wrap(err, "decoding response")}
	}

	c.logger.InfoContext(ctx, "Fetched bank transfer detail", "paymentId", paymentID, "bankReference", detail.BankReference)
	return &detail, nil
}
