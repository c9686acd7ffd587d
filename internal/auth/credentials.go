package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/store"
)

// Credentials is the credential store: username -> {password hash, colour}.
// The table lives in memory and is written through to a durable UserStore.
type Credentials struct {
	mu      sync.RWMutex
	users   map[string]*store.User
	backend store.UserStore
	cost    int
	log     *zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentials creates an empty credential store over backend.
// Call Reload to load existing users.
func NewCredentials(backend store.UserStore, cost int, logger *zerolog.Logger) *Credentials {
	if cost == 0 {
		cost = DefaultCost
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Credentials{
		users:   make(map[string]*store.User),
		backend: backend,
		cost:    cost,
		log:     logger,
	}
}

// Reload replaces the in-memory table with the durable one.
// Unreadable storage leaves an empty table; the error is returned for logging only.
func (c *Credentials) Reload(ctx context.Context) error {
	records, err := c.backend.ListUsers(ctx)
	fresh := make(map[string]*store.User, len(records))
	if err != nil {
		c.mu.Lock()
		c.users = fresh
		c.mu.Unlock()
		return fmt.Errorf("reload users: %w", err)
	}

	for _, u := range records {
		if u == nil || ValidateUsername(u.Username) != nil || u.PasswordHash == "" {
			c.log.Warn().Interface("record", u).Msg("skipping malformed user record")
			continue
		}
		rec := *u
		fresh[rec.Username] = &rec
	}

	c.mu.Lock()
	c.users = fresh
	c.mu.Unlock()

	c.log.Debug().Int("users", len(fresh)).Msg("credentials loaded")
	return nil
}

// Persist writes every in-memory user to the durable store.
func (c *Credentials) Persist(ctx context.Context) error {
	var errs []error
	for _, u := range c.Users() {
		rec := u
		if err := c.backend.SaveUser(ctx, &rec); err != nil {
			errs = append(errs, fmt.Errorf("persist %s: %w", u.Username, err))
		}
	}
	return errors.Join(errs...)
}

// Register validates and stores a new user. Only one registration for a
// given name can succeed. If the durable write fails the user is not kept.
func (c *Credentials) Register(ctx context.Context, username, password string, color int) (store.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return store.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return store.User{}, err
	}
	if err := ValidateColor(color); err != nil {
		return store.User{}, err
	}

	// Skip hashing for the obvious duplicate; the check is repeated under the write lock.
	if _, ok := c.Lookup(username); ok {
		return store.User{}, core.ErrDuplicateUsername
	}

	hash, err := HashPassword(password, c.cost)
	if err != nil {
		return store.User{}, core.ErrInvalidPassword
	}
	user := &store.User{
		Username:     username,
		PasswordHash: hash,
		Color:        color,
		CreatedAt:    time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.users[username]; exists {
		return store.User{}, core.ErrDuplicateUsername
	}
	if err := c.backend.SaveUser(ctx, user); err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("failed to persist registration")
		return store.User{}, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	c.users[username] = user
	return *user, nil
}

// Authenticate checks password against the stored hash.
// Unknown users pay the same bcrypt comparison as known ones.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	username = strings.TrimSpace(username)
	rec, ok := c.Lookup(username)
	if !ok {
		_ = ComparePassword(c.dummy(), password)
		return store.User{}, core.ErrUnknownUser
	}

	if IsLegacyHash(rec.PasswordHash) {
		if !compareLegacy(rec.PasswordHash, password) {
			return store.User{}, core.ErrInvalidCredentials
		}
		c.upgrade(ctx, rec, password)
		return rec, nil
	}

	if err := ComparePassword(rec.PasswordHash, password); err != nil {
		return store.User{}, core.ErrInvalidCredentials
	}
	return rec, nil
}

// upgrade replaces a legacy digest with a bcrypt hash after a successful login.
func (c *Credentials) upgrade(ctx context.Context, rec store.User, password string) {
	hash, err := HashPassword(password, c.cost)
	if err != nil {
		c.log.Warn().Err(err).Str("username", rec.Username).Msg("failed to rehash legacy password")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.users[rec.Username]
	if !ok || current.PasswordHash != rec.PasswordHash {
		return
	}
	upgraded := *current
	upgraded.PasswordHash = hash
	if err := c.backend.SaveUser(ctx, &upgraded); err != nil {
		c.log.Warn().Err(err).Str("username", rec.Username).Msg("failed to persist upgraded hash")
		return
	}
	c.users[rec.Username] = &upgraded
	c.log.Info().Str("username", rec.Username).Msg("upgraded legacy password hash")
}

// Import adds records that are not yet present and persists them.
// It returns the number of users added.
func (c *Credentials) Import(ctx context.Context, records []store.User) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	var errs []error
	for _, rec := range records {
		if err := ValidateUsername(rec.Username); err != nil {
			errs = append(errs, fmt.Errorf("import %q: %w", rec.Username, err))
			continue
		}
		if _, exists := c.users[rec.Username]; exists {
			continue
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		u := rec
		if err := c.backend.SaveUser(ctx, &u); err != nil {
			errs = append(errs, fmt.Errorf("import %q: %w", rec.Username, err))
			continue
		}
		c.users[u.Username] = &u
		added++
	}
	return added, errors.Join(errs...)
}

// Lookup returns a copy of the stored user.
func (c *Credentials) Lookup(username string) (store.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[username]
	if !ok {
		return store.User{}, false
	}
	return *u, true
}

// Users returns a snapshot of all users ordered by username.
func (c *Credentials) Users() []store.User {
	c.mu.RLock()
	out := make([]store.User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, *u)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Count returns the number of registered users.
func (c *Credentials) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

func (c *Credentials) dummy() string {
	c.dummyOnce.Do(func() {
		hash, err := HashPassword("not-a-real-password", c.cost)
		if err == nil {
			c.dummyHash = hash
		}
	})
	return c.dummyHash
}
