package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by stores that cannot reach durable storage.
var ErrUnavailable = errors.New("storage unavailable")

// User is the durable record kept for every registered username.
type User struct {
	Username     string
	PasswordHash string
	Color        int
	CreatedAt    time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// ListUsers returns every stored user ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)

	// SaveUser inserts the user or replaces the record with the same username.
	SaveUser(ctx context.Context, user *User) error

	// Close releases the underlying storage.
	Close() error
}

// Unavailable is a UserStore that holds nothing and refuses writes.
// It stands in for a database that could not be opened.
type Unavailable struct {
	Err error
}

// ListUsers returns an empty table.
func (u Unavailable) ListUsers(context.Context) ([]*User, error) {
	return nil, nil
}

// SaveUser always fails with ErrUnavailable.
func (u Unavailable) SaveUser(context.Context, *User) error {
	if u.Err != nil {
		return errors.Join(ErrUnavailable, u.Err)
	}
	return ErrUnavailable
}

// Close is a no-op.
func (u Unavailable) Close() error { return nil }
