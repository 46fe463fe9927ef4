package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NetsClient talks to the NETS QR push-payment API. NETS has no webhook for
// this flow, so callers poll Query until a terminal status.
type NetsClient interface {
	RequestQR(ctx context.Context, amount decimal.Decimal) (*model.NetsQRData, error)
	Query(ctx context.Context, txnRetrievalRef string, frontendTimeout bool) (*model.NetsQRData, error)
}

type netsClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
	projectID  string
	txnID      string
}

func NewNetsClient(netsCfg *config.Nets) NetsClient {
	return &netsClientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseApiURL: strings.TrimRight(netsCfg.BaseApiURL, "/"),
		apiKey:     netsCfg.APIKey,
		projectID:  netsCfg.ProjectID,
		txnID:      netsCfg.TxnID,
	}
}

func (c *netsClientImpl) RequestQR(ctx context.Context, amount decimal.Decimal) (*model.NetsQRData, error) {
	payload := model.NetsQRRequest{
		TxnID:        c.txnID,
		AmtInDollars: amount.StringFixed(2),
		NotifyMobile: 0,
	}

	data, err := c.post(ctx, "/api/v1/common/payments/nets-qr/request", payload)
	if err != nil {
		return nil, fmt.Errorf("nets request qr: %w", err)
	}
	return data, nil
}

func (c *netsClientImpl) Query(ctx context.Context, txnRetrievalRef string, frontendTimeout bool) (*model.NetsQRData, error) {
	payload := model.NetsQueryRequest{
		TxnRetrievalRef: txnRetrievalRef,
	}
	if frontendTimeout {
		payload.FrontendTimeoutStatus = 1
	}

	data, err := c.post(ctx, "/api/v1/common/payments/nets-qr/query", payload)
	if err != nil {
		return nil, fmt.Errorf("nets query: %w", err)
	}
	return data, nil
}

func (c *netsClientImpl) post(ctx context.Context, path string, payload any) (*model.NetsQRData, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("project-id", c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http client do: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "nets"); err != nil {
		return nil, err
	}

	var envelope model.NetsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode nets response: %w", err)
	}
	return &envelope.Result.Data, nil
}
