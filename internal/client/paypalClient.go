package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type PaypalClient interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, userID string) (*CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error)
	GetOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error)
	RefundCapture(ctx context.Context, captureID string) (*model.PaypalRefund, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
	webhookID          string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type CreateOrderResponse struct {
	OrderID    string
	ApproveURL string
}

// PayPal transmission headers required by verify-webhook-signature.
const (
	headerAuthAlgo         = "PAYPAL-AUTH-ALGO"
	headerCertURL          = "PAYPAL-CERT-URL"
	headerTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	headerTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	headerTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:         strings.TrimRight(paypalCfg.BaseApiURL, "/"),
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
		webhookID:          paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: http client do: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "paypal oauth"); err != nil {
		return "", err
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.accessToken = res.AccessToken
	// refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(res.ExpiresIn)*time.Second - time.Minute)

	return res.AccessToken, nil
}

func (c *paypalClientImpl) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, userID string) (*CreateOrderResponse, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": userID,
				"amount": map[string]string{
					"currency_code": currency,
					"value":         amount.StringFixed(2),
				},
			},
		},
	}

	var result model.PaypalOrder
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &result); err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	return &CreateOrderResponse{
		OrderID:    result.ID,
		ApproveURL: _extractApproveURL(result.Links),
	}, nil
}

func (c *paypalClientImpl) CaptureOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	var result model.PaypalOrder
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}
	return &result, nil
}

func (c *paypalClientImpl) GetOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	var result model.PaypalOrder
	path := fmt.Sprintf("/v2/checkout/orders/%s", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("paypal get order: %w", err)
	}
	return &result, nil
}

func (c *paypalClientImpl) RefundCapture(ctx context.Context, captureID string) (*model.PaypalRefund, error) {
	var result model.PaypalRefund
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", url.PathEscape(captureID))
	if err := c.do(ctx, http.MethodPost, path, map[string]interface{}{}, &result); err != nil {
		return nil, fmt.Errorf("paypal refund capture: %w", err)
	}
	return &result, nil
}

// VerifyWebhookSignature posts the transmission headers together with the
// untouched request body, so PayPal checks exactly the bytes it signed.
func (c *paypalClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	for _, h := range []string{headerAuthAlgo, headerCertURL, headerTransmissionID, headerTransmissionSig, headerTransmissionTime} {
		if headers.Get(h) == "" {
			return fmt.Errorf("%w: missing header %s", ErrInvalidSignature, h)
		}
	}
	if !json.Valid(body) {
		return fmt.Errorf("%w: body is not valid json", ErrInvalidSignature)
	}

	meta, err := json.Marshal(struct {
		AuthAlgo         string `json:"auth_algo"`
		CertURL          string `json:"cert_url"`
		TransmissionID   string `json:"transmission_id"`
		TransmissionSig  string `json:"transmission_sig"`
		TransmissionTime string `json:"transmission_time"`
		WebhookID        string `json:"webhook_id"`
	}{
		AuthAlgo:         headers.Get(headerAuthAlgo),
		CertURL:          headers.Get(headerCertURL),
		TransmissionID:   headers.Get(headerTransmissionID),
		TransmissionSig:  headers.Get(headerTransmissionSig),
		TransmissionTime: headers.Get(headerTransmissionTime),
		WebhookID:        c.webhookID,
	})
	if err != nil {
		return fmt.Errorf("marshal verify payload: %w", err)
	}

	// splice the raw event in; json.Marshal would compact it
	payload := make([]byte, 0, len(meta)+len(body)+20)
	payload = append(payload, meta[:len(meta)-1]...)
	payload = append(payload, `,"webhook_event":`...)
	payload = append(payload, body...)
	payload = append(payload, '}')

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &res); err != nil {
		return fmt.Errorf("paypal verify webhook: %w", err)
	}

	if res.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: verification status %q", ErrInvalidSignature, res.VerificationStatus)
	}
	return nil
}

func (c *paypalClientImpl) do(ctx context.Context, method, path string, payload any, out any) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get paypal access token: %w", err)
	}

	var reqBody io.Reader
	switch p := payload.(type) {
	case nil:
	case []byte:
		reqBody = bytes.NewReader(p)
	default:
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http client do: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "paypal"); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response, provider string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s error %d: %s", ErrProviderUnavailable, provider, resp.StatusCode, string(b))
	}
	return fmt.Errorf("%s error %d: %s", provider, resp.StatusCode, string(b))
}

func _extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
