package domain

import "time"

// WebhookDelivery remembers a provider webhook that has already been applied,
// keyed by (endpoint, token) where token is the provider's per-delivery
// idempotency token. Retries of the same delivery carry the same token, which
// lets the router rebuild its response without repeating side effects.
type WebhookDelivery struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Endpoint  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_webhook_endpoint_token,priority:1"`
	Token     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_webhook_endpoint_token,priority:2"`
	CallSid   string    `gorm:"type:TEXT NOT NULL;index"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
