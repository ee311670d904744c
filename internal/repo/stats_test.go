package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-call-router/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCallsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := CallsStats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing calls table")
	}
}

func TestCallsStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.CallRecord{})
	count, maxAt, err := CallsStats(context.Background(), db)
	if err != nil {
		t.Fatalf("CallsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestCallsStats_CountAndMax(t *testing.T) {
	db := newTestDB(t, &domain.CallRecord{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max
	t3 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{t1, t2, t3} {
		rec := &domain.CallRecord{
			ID: uuid.NewString(), From: "+1", To: "+2", CallSid: fmt.Sprintf("CA%d", i),
			Status: domain.CallStatusOngoing, CreatedAt: ts, UpdatedAt: ts,
		}
		// Non-zero timestamps are kept as-is by GORM on create.
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	count, maxAt, err := CallsStats(context.Background(), db)
	if err != nil {
		t.Fatalf("CallsStats error: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d; want 3", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("maxUpdatedAt = %v; want %v", maxAt, t2)
	}
}
