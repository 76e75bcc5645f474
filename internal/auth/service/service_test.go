package service_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/events"
	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/internal/auth/store/drivers/sqlite"
	"github.com/castellan/castellan/pkg/cryptox"
)

const testChallenge = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

// testHarness wires the full service stack against an in-memory database.
type testHarness struct {
	Store      *sqlite.Store
	Dispatcher *events.Dispatcher
	Register   *service.RegisterService
	Users      *service.UserService
	Roles      *service.RoleService
	Sessions   *service.SessionsService
	Issuer     *service.CodeIssuer
	Auth       *service.AuthService
	MFA        *service.MFAService
	Social     *service.SocialService
}

// testDBCounter gives each harness a distinct shared-cache in-memory
// database. A plain ":memory:" DSN gives every pooled connection its own
// empty database, which breaks queries that need a second connection.
var testDBCounter atomic.Int64

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	hasher := cryptox.Hasher{Cost: 4} // fast hashes for tests
	dispatcher := events.NewDispatcher()

	sessions := &service.SessionsService{Store: st, Dispatcher: dispatcher}
	issuer := &service.CodeIssuer{Store: st, TTL: 5 * time.Minute}
	users := &service.UserService{Store: st, Hasher: hasher, Dispatcher: dispatcher}

	return &testHarness{
		Store:      st,
		Dispatcher: dispatcher,
		Register:   &service.RegisterService{Store: st, Hasher: hasher, Dispatcher: dispatcher},
		Users:      users,
		Roles:      &service.RoleService{Store: st},
		Sessions:   sessions,
		Issuer:     issuer,
		Auth:       &service.AuthService{Store: st, Hasher: hasher, Issuer: issuer, Sessions: sessions},
		MFA:        &service.MFAService{Users: users, Sessions: sessions, Issuer: "castellan-test"},
		Social:     &service.SocialService{Store: st, Sessions: sessions, GatewaySecret: []byte("test-gateway-secret")},
	}
}

func (h *testHarness) register(t *testing.T, email, username, password string) domain.User {
	t.Helper()

	user, err := h.Register.Register(context.Background(), service.RegisterCommand{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
	return user
}
