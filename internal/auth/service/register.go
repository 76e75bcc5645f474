package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/events"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/castellan/castellan/pkg/idx"
	"github.com/castellan/castellan/pkg/slogx"
)

// RegisterCommand carries the inputs for user registration.
type RegisterCommand struct {
	Email    string
	Username string
	Password string
}

// String redacts the password so commands can be logged safely.
func (c RegisterCommand) String() string {
	return fmt.Sprintf("RegisterCommand{Email:%s Username:%s Password:[redacted]}", c.Email, c.Username)
}

// RegisterService creates user accounts. Email and username uniqueness is
// enforced both by an upfront check (for a friendly error) and by the
// database's unique indexes (for correctness under races).
type RegisterService struct {
	Store      store.Store
	Hasher     cryptox.Hasher
	Dispatcher *events.Dispatcher
}

// Register validates the command, hashes the password, and persists the new
// user. Domain events are dispatched after the transaction commits.
func (s *RegisterService) Register(ctx context.Context, cmd RegisterCommand) (domain.User, error) {
	if err := s.checkUniqueness(ctx, cmd); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(cmd.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("register: %w", err)
	}

	userID := idx.New().String()
	cred, err := domain.NewCredential(idx.New().String(), userID, cmd.Username, hash)
	if err != nil {
		return domain.User{}, err
	}
	user, err := domain.NewUser(userID, cmd.Email, cred)
	if err != nil {
		return domain.User{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, *user)
	})
	if err != nil {
		// A concurrent registration can slip past the upfront check; the
		// unique index is the source of truth.
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("register: %w", domain.ErrConflict)
		}
		return domain.User{}, fmt.Errorf("register: %w", err)
	}

	slogx.FromContext(ctx).InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID))
	s.Dispatcher.DispatchAll(ctx, user.Release())
	return *user, nil
}

func (s *RegisterService) checkUniqueness(ctx context.Context, cmd RegisterCommand) error {
	if _, err := s.Store.Users().GetUserByEmail(ctx, cmd.Email); err == nil {
		return fmt.Errorf("email %q: %w", cmd.Email, domain.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if _, err := s.Store.Users().GetUserByUsername(ctx, cmd.Username); err == nil {
		return fmt.Errorf("username %q: %w", cmd.Username, domain.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return nil
}
