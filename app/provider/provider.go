package provider

import "context"

// LineItem is one purchasable entry of a checkout session. UnitAmountCents is
// the price the buyer was shown; the provider never overrides it.
type LineItem struct {
	ItemType        string
	ItemID          string
	Name            string
	UnitAmountCents int64
	Quantity        int32
}

type CheckoutInput struct {
	ClientReferenceID string
	Currency          string
	LineItems         []LineItem

	CustomerEmail string
	Metadata      map[string]string

	SuccessURL string
	CancelURL  string
}

type CheckoutOutput struct {
	SessionID   string
	CheckoutURL string
}

// Notification event kinds after verification and parsing.
const (
	EventKindUnknown   int32 = 0
	EventKindCompleted int32 = 1
	EventKindFailed    int32 = 2
)

// NotificationEvent is the verified, typed form of a provider webhook.
// SessionID correlates the event to local enrollment records.
type NotificationEvent struct {
	EventID   string
	EventType string
	Kind      int32
	SessionID string
}

type Provider interface {
	Code() int32
	CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*CheckoutOutput, error)
	VerifyNotification(ctx context.Context, payload []byte, signature string) (*NotificationEvent, error)
	GetSessionStatus(ctx context.Context, sessionID string) (int32, error)
}
