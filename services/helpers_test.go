package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kendall-kelly/eventflow-api/models"
)

var (
	testCtx   = context.Background()
	testLog   = zerolog.Nop()
	testActor = models.Actor{Name: "Test Staff"}
)

// setupTestDB opens a fresh in-memory database with every table migrated.
// A single connection keeps every statement on the same memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func intp(v int) *int {
	return &v
}

func strp(v string) *string {
	return &v
}

func boolp(v bool) *bool {
	return &v
}

func requireKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, kind, se.Kind, "unexpected kind for %v", err)
	if code != "" {
		require.Equal(t, code, se.Code, "unexpected code for %v", err)
	}
}

func createTestEvent(t *testing.T, db *gorm.DB, name string) *models.Event {
	t.Helper()
	event := models.Event{Name: name, Status: models.EventStatusInquiry, PaymentStatus: models.EventPaymentUnpaid}
	require.NoError(t, db.Create(&event).Error)
	return &event
}

func createTestProduct(t *testing.T, db *gorm.DB, name, price string) *models.Product {
	t.Helper()
	p := models.Product{Name: name, BasePrice: d(price), IsActive: true}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

// fixedClock returns a clock for services that take a now func.
func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
