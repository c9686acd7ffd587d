package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/store"
	"github.com/vovakirdan/linechat/internal/store/sqlite"
)

func newTestBackend(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestCredentials(t *testing.T) *Credentials {
	t.Helper()
	return NewCredentials(newTestBackend(t), bcrypt.MinCost, nil)
}

// failingStore accepts reads and refuses every write.
type failingStore struct{}

func (failingStore) ListUsers(context.Context) ([]*store.User, error) { return nil, nil }
func (failingStore) SaveUser(context.Context, *store.User) error      { return errors.New("disk full") }
func (failingStore) Close() error                                     { return nil }

// brokenStore cannot be read.
type brokenStore struct{ failingStore }

func (brokenStore) ListUsers(context.Context) ([]*store.User, error) {
	return nil, errors.New("file is not a database")
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	creds := newTestCredentials(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "thirteenchars", "bad-name", "spa ce", "ünïcode"} {
		if _, err := creds.Register(ctx, name, "pw", 6); !errors.Is(err, core.ErrInvalidUsername) {
			t.Fatalf("Register(%q): expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestRegister_ValidatesUsernameBeforeUniqueness(t *testing.T) {
	creds := newTestCredentials(t)
	ctx := context.Background()

	if _, err := creds.Register(ctx, "alice", "pw", 6); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Over-long names are rejected as invalid even if a prefix exists.
	if _, err := creds.Register(ctx, "alice"+strings.Repeat("x", 10), "pw", 6); !errors.Is(err, core.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPasswordAndColor(t *testing.T) {
	creds := newTestCredentials(t)
	ctx := context.Background()

	if _, err := creds.Register(ctx, "alice", "", 6); !errors.Is(err, core.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := creds.Register(ctx, "alice", strings.Repeat("p", 73), 6); !errors.Is(err, core.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for long password, got %v", err)
	}
	if _, err := creds.Register(ctx, "alice", "pw", 256); !errors.Is(err, core.ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	creds := newTestCredentials(t)
	ctx := context.Background()

	if _, err := creds.Register(ctx, " alice ", "pw", 6); err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	// Should collide because the stored username is trimmed.
	if _, err := creds.Register(ctx, "alice", "other", 4); !errors.Is(err, core.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestRegister_ConcurrentSameNameOnlyOneSucceeds(t *testing.T) {
	creds := newTestCredentials(t)
	ctx := context.Background()

	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := creds.Register(ctx, "alice", "pw", 6)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, core.ErrDuplicateUsername):
				dups.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || dups.Load() != 15 {
		t.Fatalf("expected 1 win and 15 duplicates, got %d/%d", wins.Load(), dups.Load())
	}
}

func TestRoundTrip(t *testing.T) {
	creds := newTestCredentials(t)
	ctx := context.Background()

	if _, err := creds.Register(ctx, "alice", "pw", 6); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := creds.Authenticate(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Color != 6 || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.PasswordHash == "pw" || IsLegacyHash(u.PasswordHash) {
		t.Fatalf("password must be stored as bcrypt hash")
	}

	if _, err := creds.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := creds.Authenticate(ctx, "ghost", "pw"); !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestRegister_StorageFailureRollsBack(t *testing.T) {
	creds := NewCredentials(failingStore{}, bcrypt.MinCost, nil)
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "pw", 6)
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, ok := creds.Lookup("alice"); ok {
		t.Fatalf("failed registration must not stay in memory")
	}
	if _, err := creds.Authenticate(ctx, "alice", "pw"); !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser after rollback, got %v", err)
	}
}

func TestReload(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	first := NewCredentials(backend, bcrypt.MinCost, nil)
	if _, err := first.Register(ctx, "alice", "pw", 11); err != nil {
		t.Fatalf("register: %v", err)
	}

	second := NewCredentials(backend, bcrypt.MinCost, nil)
	if err := second.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	u, err := second.Authenticate(ctx, "alice", "pw")
	if err != nil || u.Color != 11 {
		t.Fatalf("expected reloaded user, got %+v err=%v", u, err)
	}
}

func TestReload_UnreadableStoreIsEmpty(t *testing.T) {
	creds := NewCredentials(brokenStore{}, bcrypt.MinCost, nil)

	if err := creds.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload to report the read failure")
	}
	if creds.Count() != 0 {
		t.Fatalf("expected empty table, got %d users", creds.Count())
	}
}

func TestPersist(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	creds := NewCredentials(backend, bcrypt.MinCost, nil)
	if _, err := creds.Import(ctx, []store.User{{Username: "bob", PasswordHash: LegacyDigest("pw"), Color: 4}}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := creds.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	users, err := backend.ListUsers(ctx)
	if err != nil || len(users) != 1 || users[0].Username != "bob" {
		t.Fatalf("unexpected stored users: %+v err=%v", users, err)
	}
}

func TestLegacyHashUpgradedOnLogin(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	legacy, err := ParseLegacyUsers([]byte(`{"bob": {"password": "` + LegacyDigest("secret") + `", "color": 9}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	creds := NewCredentials(backend, bcrypt.MinCost, nil)
	added, err := creds.Import(ctx, legacy)
	if err != nil || added != 1 {
		t.Fatalf("import: added=%d err=%v", added, err)
	}

	if _, err := creds.Authenticate(ctx, "bob", "nope"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	u, err := creds.Authenticate(ctx, "bob", "secret")
	if err != nil || u.Color != 9 {
		t.Fatalf("legacy login failed: %+v err=%v", u, err)
	}

	stored, _ := creds.Lookup("bob")
	if IsLegacyHash(stored.PasswordHash) {
		t.Fatalf("expected hash to be upgraded to bcrypt")
	}
	if _, err := creds.Authenticate(ctx, "bob", "secret"); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
}

func TestParseLegacyUsers_RejectsGarbage(t *testing.T) {
	if _, err := ParseLegacyUsers([]byte(`not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseLegacyUsers([]byte(`{"bob": {"password": "plain"}}`)); err == nil {
		t.Fatalf("expected error for non-digest password")
	}
}
