package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type productRecord struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID        string    `bun:"id,pk"`
	VendorID  string    `bun:"vendor_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID               string     `bun:"id,pk"`
	VendorID         string     `bun:"vendor_id,notnull"`
	ProductID        string     `bun:"product_id,notnull"`
	CustomerEmail    string     `bun:"customer_email,notnull"`
	CustomerName     string     `bun:"customer_name,notnull"`
	AmountCents      int64      `bun:"amount_cents,notnull"`
	Currency         string     `bun:"currency,notnull"`
	PaymentMethod    string     `bun:"payment_method,notnull"`
	Gateway          string     `bun:"gateway,notnull"`
	GatewayPaymentID *string    `bun:"gateway_payment_id"`
	Status           string     `bun:"status,notnull"`
	PaidAt           *time.Time `bun:"paid_at,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentMappingRecord struct {
	bun.BaseModel `bun:"table:payments_map,alias:pm"`

	ID        string    `bun:"id,pk"`
	OrderID   string    `bun:"order_id,notnull"`
	PixID     string    `bun:"pix_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type orderEventRecord struct {
	bun.BaseModel `bun:"table:order_events,alias:oe"`

	ID             string    `bun:"id,pk"`
	GatewayEventID string    `bun:"gateway_event_id,notnull"`
	OrderID        string    `bun:"order_id,notnull"`
	VendorID       string    `bun:"vendor_id,notnull"`
	Type           string    `bun:"type,notnull"`
	Payload        string    `bun:"payload,notnull"`
	OccurredAt     time.Time `bun:"occurred_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type gatewayCredentialRecord struct {
	bun.BaseModel `bun:"table:payment_gateway_settings,alias:pgs"`

	ID             string    `bun:"id,pk"`
	VendorID       string    `bun:"vendor_id,notnull"`
	EncryptedToken []byte    `bun:"encrypted_token,notnull"`
	Environment    string    `bun:"environment,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type outboundWebhookRecord struct {
	bun.BaseModel `bun:"table:outbound_webhooks,alias:ow"`

	ID              string    `bun:"id,pk"`
	VendorID        string    `bun:"vendor_id,notnull"`
	Name            string    `bun:"name,notnull"`
	URL             string    `bun:"url,notnull"`
	EncryptedSecret []byte    `bun:"encrypted_secret,notnull"`
	Events          []string  `bun:"events,type:jsonb,notnull"`
	Active          bool      `bun:"active,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookProductRecord struct {
	bun.BaseModel `bun:"table:webhook_products,alias:wp"`

	WebhookID string `bun:"webhook_id,pk"`
	ProductID string `bun:"product_id,pk"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID             string     `bun:"id,pk"`
	WebhookID      string     `bun:"webhook_id,notnull"`
	OrderID        *string    `bun:"order_id"`
	EventType      string     `bun:"event_type,notnull"`
	Payload        string     `bun:"payload,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastAttemptAt  *time.Time `bun:"last_attempt_at,nullzero"`
	NextRetryAt    *time.Time `bun:"next_retry_at,nullzero"`
	ResponseStatus int        `bun:"response_status,notnull"`
	ResponseBody   string     `bun:"response_body,notnull"`
	ErrorMessage   string     `bun:"error_message,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type checkoutSessionRecord struct {
	bun.BaseModel `bun:"table:checkout_sessions,alias:cs"`

	ID         string    `bun:"id,pk"`
	OrderID    string    `bun:"order_id,notnull"`
	VendorID   string    `bun:"vendor_id,notnull"`
	Status     string    `bun:"status,notnull"`
	LastSeenAt time.Time `bun:"last_seen_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
