// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides helpers for the WebhookDelivery model
// used to recognize provider retries of an already applied webhook.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/domain"
)

// GetWebhookDelivery returns a non-expired delivery or ErrNotFound.
func GetWebhookDelivery(ctx context.Context, db *gorm.DB, endpoint, token string, now time.Time) (*domain.WebhookDelivery, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}
	var rec domain.WebhookDelivery
	err := db.WithContext(ctx).
		Where("endpoint = ? AND token = ? AND expires_at > ?", endpoint, token, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReserveWebhookDelivery claims (endpoint, token) for ttl before the
// delivery is applied. It reports false when a live reservation or applied
// delivery already holds the pair. An expired row for the pair is replaced.
func ReserveWebhookDelivery(ctx context.Context, db *gorm.DB, endpoint, token, callSid string, ttl time.Duration, now time.Time) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, ErrNotFound
	}
	rec := &domain.WebhookDelivery{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		Token:     token,
		CallSid:   callSid,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ? AND token = ? AND expires_at <= ?", endpoint, token, now).
			Delete(&domain.WebhookDelivery{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CompleteWebhookDelivery stores the response status of a reserved delivery.
func CompleteWebhookDelivery(ctx context.Context, db *gorm.DB, endpoint, token string, status int) error {
	res := db.WithContext(ctx).Model(&domain.WebhookDelivery{}).
		Where("endpoint = ? AND token = ?", endpoint, token).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseWebhookDelivery drops a reservation so the provider's next retry is
// applied again.
func ReleaseWebhookDelivery(ctx context.Context, db *gorm.DB, endpoint, token string) error {
	return db.WithContext(ctx).
		Where("endpoint = ? AND token = ?", endpoint, token).
		Delete(&domain.WebhookDelivery{}).Error
}

// PurgeWebhookDeliveries deletes deliveries that expired before now and
// returns how many rows were removed.
func PurgeWebhookDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
