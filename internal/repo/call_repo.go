// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for CallRecord.
//
// CallSid is the correlation key for every provider webhook. It is indexed
// but deliberately not unique, so updates address every row carrying the sid
// and report how many rows they touched instead of failing on zero.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/domain"
)

// NewCall carries the fields captured when a caller is bridged.
type NewCall struct {
	From      string
	To        string
	Extension string
	CallSid   string
	Status    string
}

// CallPatch is a partial update applied by a webhook. Nil fields are left
// untouched.
type CallPatch struct {
	Status       *string
	RecordingURL *string
}

// CreateCall inserts a CallRecord with a random UUID.
func CreateCall(ctx context.Context, db *gorm.DB, in NewCall) (*domain.CallRecord, error) {
	now := time.Now().UTC()
	rec := &domain.CallRecord{
		ID:        uuid.NewString(),
		From:      in.From,
		To:        in.To,
		CallSid:   in.CallSid,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Extension != "" {
		ext := in.Extension
		rec.Extension = &ext
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateCallBySid applies patch to every record with callSid and returns the
// number of affected rows. Zero rows is not an error.
func UpdateCallBySid(ctx context.Context, db *gorm.DB, callSid string, patch CallPatch) (int64, error) {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Status != nil {
		fields["status"] = *patch.Status
	}
	if patch.RecordingURL != nil {
		fields["recording_url"] = *patch.RecordingURL
	}
	res := db.WithContext(ctx).
		Model(&domain.CallRecord{}).
		Where("call_sid = ?", callSid).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// FindCallBySid returns the newest record for callSid, or ErrNotFound.
func FindCallBySid(ctx context.Context, db *gorm.DB, callSid string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := db.WithContext(ctx).
		Where("call_sid = ?", callSid).
		Order("created_at desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCalls returns every call record, newest first.
func ListCalls(ctx context.Context, db *gorm.DB) ([]domain.CallRecord, error) {
	var out []domain.CallRecord
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
