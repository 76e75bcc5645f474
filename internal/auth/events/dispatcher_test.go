package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/events"
)

func TestDispatcher_DeliversInRegistrationOrder(t *testing.T) {
	d := events.NewDispatcher()

	var order []string
	d.Register("user.registered", func(ctx context.Context, e domain.Event) {
		order = append(order, "first")
	})
	d.Register("user.registered", func(ctx context.Context, e domain.Event) {
		order = append(order, "second")
	})

	d.Dispatch(context.Background(), domain.UserRegistered{UserID: "u1", Email: "a@b.co"})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcher_UnregisteredEventIsNoOp(t *testing.T) {
	d := events.NewDispatcher()

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), domain.SessionRevoked{SessionID: "s1"})
	})
}

func TestDispatcher_PassesEventPayload(t *testing.T) {
	d := events.NewDispatcher()

	var got domain.UserEmailChanged
	d.Register("user.email_changed", func(ctx context.Context, e domain.Event) {
		got = e.(domain.UserEmailChanged)
	})

	d.Dispatch(context.Background(), domain.UserEmailChanged{
		UserID: "u1", OldEmail: "old@x.co", NewEmail: "new@x.co",
	})

	assert.Equal(t, "old@x.co", got.OldEmail)
	assert.Equal(t, "new@x.co", got.NewEmail)
}

func TestDispatcher_DispatchAllDrainsAggregateBuffer(t *testing.T) {
	d := events.NewDispatcher()

	var seen []string
	record := func(ctx context.Context, e domain.Event) {
		seen = append(seen, e.EventName())
	}
	d.Register("user.registered", record)
	d.Register("user.deactivated", record)

	cred, err := domain.NewCredential("c1", "u1", "alice", "hash")
	require.NoError(t, err)
	u, err := domain.NewUser("u1", "alice@example.com", cred)
	require.NoError(t, err)
	u.Deactivate()
	u.Verify() // nobody registered for user.verified

	d.DispatchAll(context.Background(), u.Release())

	assert.Equal(t, []string{"user.registered", "user.deactivated"}, seen)
}
