package services

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestMain refuses to run outside GO_ENV=test
func TestMain(m *testing.M) {
	if env := os.Getenv("GO_ENV"); env != "test" {
		fmt.Fprintf(os.Stderr, "SAFETY CHECK FAILED: tests must run with GO_ENV=test (current %q)\n", env)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

var testEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// testEnv is one isolated database plus the process-wide collaborators the
// services pick up at construction time.
type testEnv struct {
	db       *gorm.DB
	clock    *testutil.FixedClock
	notifier *RecordingNotifier
	enc      *AgeEncryptor

	customer *models.User
	provider *models.User
	admin    *models.User
	stranger *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       testutil.NewTestDB(t),
		clock:    testutil.NewFixedClock(testEpoch),
		notifier: NewRecordingNotifier(),
	}
	enc, err := GenerateAgeEncryptor()
	require.NoError(t, err)
	env.enc = enc

	prevClock, prevNotifier, prevEnc := GetClock(), GetNotifier(), GetEncryptor()
	SetClock(env.clock)
	env.notifier.SetAsMockForTesting()
	SetEncryptor(enc)
	t.Cleanup(func() {
		SetClock(prevClock)
		SetNotifier(prevNotifier)
		SetEncryptor(prevEnc)
	})

	env.customer = testutil.CreateUser(t, env.db, "auth0|customer", models.RoleCustomer)
	env.provider = testutil.CreateUser(t, env.db, "auth0|provider", models.RoleProvider)
	env.admin = testutil.CreateUser(t, env.db, "auth0|admin", models.RoleAdmin)
	env.stranger = testutil.CreateUser(t, env.db, "auth0|stranger", models.RoleCustomer)
	return env
}

func (e *testEnv) asCustomer() Actor { return ActorFromUser(e.customer) }
func (e *testEnv) asProvider() Actor { return ActorFromUser(e.provider) }
func (e *testEnv) asAdmin() Actor    { return ActorFromUser(e.admin) }
func (e *testEnv) asStranger() Actor { return ActorFromUser(e.stranger) }

func (e *testEnv) order(t *testing.T, status models.OrderStatus, basePrice string) *models.Order {
	t.Helper()
	return testutil.CreateOrder(t, e.db, e.customer.ID, e.provider.ID, status, basePrice)
}

func (e *testEnv) reload(t *testing.T, order *models.Order) *models.Order {
	t.Helper()
	var fresh models.Order
	require.NoError(t, e.db.First(&fresh, order.ID).Error)
	return &fresh
}

func requireKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr, "expected a ServiceError, got %v", err)
	require.Equal(t, kind, svcErr.Kind, "unexpected kind for %q", svcErr.Message)
	if code != "" {
		require.Equal(t, code, svcErr.Code)
	}
}
