// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Extension directory.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only CRUD persistence
// and query composition.
//
// Error semantics:
//   - When an extension is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateExtension inserts a directory entry with a random UUID.
func CreateExtension(ctx context.Context, db *gorm.DB, number, code string) (*domain.Extension, error) {
	now := time.Now().UTC()
	e := &domain.Extension{
		ID:        uuid.NewString(),
		Number:    number,
		Extension: code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListExtensions returns the whole directory ordered by code, then age.
func ListExtensions(ctx context.Context, db *gorm.DB) ([]domain.Extension, error) {
	var out []domain.Extension
	err := db.WithContext(ctx).
		Order("extension asc").
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// GetExtension fetches a directory entry by primary key.
func GetExtension(ctx context.Context, db *gorm.DB, id string) (*domain.Extension, error) {
	var e domain.Extension
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// FindExtensionByCode returns the routing target for a dial code. Codes are
// not unique, so the most recently created entry wins.
func FindExtensionByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Extension, error) {
	var e domain.Extension
	err := db.WithContext(ctx).
		Where("extension = ?", code).
		Order("created_at desc").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateExtension overwrites number and code. Returns ErrNotFound when no row
// matched.
func UpdateExtension(ctx context.Context, db *gorm.DB, id, number, code string) (*domain.Extension, error) {
	res := db.WithContext(ctx).
		Model(&domain.Extension{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"number":     number,
			"extension":  code,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetExtension(ctx, db, id)
}

// DeleteExtension removes a directory entry. Returns ErrNotFound when no row
// matched.
func DeleteExtension(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Extension{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
