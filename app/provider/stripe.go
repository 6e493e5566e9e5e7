package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type StripeProvider struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.stripe.com"
	}

	return &StripeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *StripeProvider) Code() int32 {
	return CodeStripe
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*CheckoutOutput, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	if len(input.LineItems) == 0 {
		return nil, errors.New("checkout session requires at least one line item")
	}
	if strings.TrimSpace(input.SuccessURL) == "" || strings.TrimSpace(input.CancelURL) == "" {
		return nil, errors.New("success and cancel urls are required")
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("success_url", strings.TrimSpace(input.SuccessURL))
	values.Set("cancel_url", strings.TrimSpace(input.CancelURL))
	if ref := strings.TrimSpace(input.ClientReferenceID); ref != "" {
		values.Set("client_reference_id", ref)
	}
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		values.Set("customer_email", email)
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	for i, item := range input.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		values.Set(prefix+"[quantity]", strconv.FormatInt(int64(quantity), 10))
		values.Set(prefix+"[price_data][currency]", currency)
		values.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmountCents, 10))
		values.Set(prefix+"[price_data][product_data][name]", lineItemName(item))
	}

	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := p.postForm(ctx, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("stripe checkout session id missing")
	}

	return &CheckoutOutput{
		SessionID:   strings.TrimSpace(payload.ID),
		CheckoutURL: strings.TrimSpace(payload.URL),
	}, nil
}

// VerifyNotification checks the Stripe-Signature header against the exact raw
// payload bytes. Signatures are computed over the raw body, so the payload
// must never be re-serialized before verification.
func (p *StripeProvider) VerifyNotification(_ context.Context, payload []byte, signature string) (*NotificationEvent, error) {
	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if !verifyStripeSignature(payload, signature, p.cfg.WebhookSecret, p.cfg.SignatureToleranceSeconds) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ErrMalformedPayload
	}
	if strings.TrimSpace(event.Type) == "" {
		return nil, ErrMalformedPayload
	}

	result := &NotificationEvent{
		EventID:   strings.TrimSpace(event.ID),
		EventType: event.Type,
		Kind:      EventKindUnknown,
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		session, err := parseCheckoutSession(event.Data.Object)
		if err != nil {
			return nil, ErrMalformedPayload
		}
		result.SessionID = session.ID
		// A completed session that is not paid yet (async methods) settles
		// later through async_payment_succeeded; until then it stays pending.
		if session.PaymentStatus == "paid" || session.PaymentStatus == "no_payment_required" {
			result.Kind = EventKindCompleted
		}
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		session, err := parseCheckoutSession(event.Data.Object)
		if err != nil {
			return nil, ErrMalformedPayload
		}
		result.SessionID = session.ID
		result.Kind = EventKindFailed
	default:
		// Unrecognized event types carry no checkout session correlation we
		// trust; they are reported as unknown and acknowledged upstream.
	}

	return result, nil
}

// GetSessionStatus polls a checkout session and reports it as an event kind,
// mirroring what the equivalent webhook would have carried.
func (p *StripeProvider) GetSessionStatus(ctx context.Context, sessionID string) (int32, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return EventKindUnknown, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIBaseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return EventKindUnknown, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return EventKindUnknown, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EventKindUnknown, err
	}
	if resp.StatusCode >= 400 {
		return EventKindUnknown, fmt.Errorf("stripe get checkout session failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return EventKindUnknown, err
	}

	if payload.Status == "expired" {
		return EventKindFailed, nil
	}
	switch payload.PaymentStatus {
	case "paid", "no_payment_required":
		return EventKindCompleted, nil
	default:
		return EventKindUnknown, nil
	}
}

func (p *StripeProvider) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

type checkoutSessionObject struct {
	ID            string `json:"id"`
	PaymentStatus string `json:"payment_status"`
}

func parseCheckoutSession(payload json.RawMessage) (*checkoutSessionObject, error) {
	var object checkoutSessionObject
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, err
	}
	object.ID = strings.TrimSpace(object.ID)
	if object.ID == "" {
		return nil, errors.New("checkout session id missing")
	}
	return &object, nil
}

func lineItemName(item LineItem) string {
	name := strings.TrimSpace(item.Name)
	if name != "" {
		return name
	}
	name = strings.TrimSpace(item.ItemType) + "-" + strings.TrimSpace(item.ItemID)
	if name == "-" {
		return "enrollment"
	}
	return name
}

func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	parts := strings.Split(signatureHeader, ",")
	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	signedPayload := []byte(ts + "." + string(payload))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}
