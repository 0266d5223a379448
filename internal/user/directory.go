package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/kv"
	"github.com/primebets/advisor/internal/validation"
)

const (
	userPrefix  = "user:"
	emailPrefix = "user_email:"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidUser  = errors.New("invalid user")
)

// User is a registered account
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory stores users and enumerates them for the automation jobs
type Directory struct {
	store  kv.Store
	clock  clockwork.Clock
	logger *slog.Logger
	mu     sync.Mutex
}

func NewDirectory(store kv.Store, clock clockwork.Clock, logger *slog.Logger) *Directory {
	return &Directory{store: store, clock: clock, logger: logger}
}

// Create registers a user. Emails are unique, compared case-insensitively.
func (d *Directory) Create(ctx context.Context, name, email string) (*User, error) {
	if r := validation.Name(name); !r.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUser, r.Error)
	}
	if r := validation.Email(email); !r.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUser, r.Error)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.store.Get(ctx, emailPrefix+email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, kv.ErrNotFound):
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	u := User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     email,
		CreatedAt: d.clock.Now(),
	}

	if err := kv.SetJSON(ctx, d.store, userPrefix+u.ID, u); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	if err := d.store.Set(ctx, emailPrefix+email, []byte(u.ID)); err != nil {
		return nil, fmt.Errorf("failed to index email: %w", err)
	}

	d.logger.Info("User created", slog.String("user_id", u.ID))
	return &u, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*User, error) {
	var u User
	found, err := kv.GetJSON(ctx, d.store, userPrefix+id, &u)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// IDs lists every registered user id in ascending order
func (d *Directory) IDs(ctx context.Context) ([]string, error) {
	ids, err := kv.IDs(ctx, d.store, userPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

// List returns every readable user, skipping corrupt records
func (d *Directory) List(ctx context.Context) ([]User, error) {
	ids, err := d.IDs(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		u, err := d.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				d.logger.Warn("Skipping unreadable user record", slog.String("user_id", id))
				continue
			}
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}
