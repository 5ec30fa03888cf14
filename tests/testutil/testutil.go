package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// NewTestDB opens a migrated in-memory SQLite database. A single connection
// keeps every query, transactional or not, on the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db), "failed to migrate test database")
	return db
}

// FixedClock is a settable clock for expiry and edit-window tests.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a clock stopped at now
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now.UTC()}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// CreateUser inserts an active user with the given subject and role
func CreateUser(t *testing.T, db *gorm.DB, subject string, role models.Role) *models.User {
	t.Helper()
	user := models.User{
		ExternalID: subject,
		Name:       fmt.Sprintf("%s %s", role, subject),
		Email:      fmt.Sprintf("%s@example.com", sanitize(subject)),
		Role:       role,
		IsActive:   true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// CreateProviderService lists an active service for providerID
func CreateProviderService(t *testing.T, db *gorm.DB, providerID uint, basePrice string) *models.ProviderService {
	t.Helper()
	service := models.ProviderService{
		ProviderID: providerID,
		Name:       "AC cleaning",
		BasePrice:  decimal.RequireFromString(basePrice),
		IsActive:   true,
	}
	require.NoError(t, db.Create(&service).Error)
	return &service
}

// CreateOrder inserts an order in the given status with finalAmount equal to basePrice
func CreateOrder(t *testing.T, db *gorm.DB, customerID, providerID uint, status models.OrderStatus, basePrice string) *models.Order {
	t.Helper()
	service := CreateProviderService(t, db, providerID, basePrice)
	base := decimal.RequireFromString(basePrice)
	order := models.Order{
		CustomerID:          customerID,
		ProviderID:          providerID,
		ProviderServiceID:   service.ID,
		Status:              status,
		ScheduledDate:       time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		JobAddress:          "12 Test Street",
		BasePrice:           base,
		FinalAmount:         decimal.NewNullDecimal(base),
		ChosenPaymentMethod: models.PaymentCash,
	}
	require.NoError(t, db.Create(&order).Error)
	return &order
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
