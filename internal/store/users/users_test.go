package users

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s, dir
}

func TestNew_BootstrapsAdmin(t *testing.T) {
	s, _ := newTestStore(t)
	admin, err := s.GetByUsername("admin")
	if err != nil {
		t.Fatalf("expected bootstrap admin: %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Errorf("admin role = %q", admin.Role)
	}
	if len(admin.PasswordSalt) != 16 {
		t.Errorf("salt length = %d, want 16", len(admin.PasswordSalt))
	}
	if admin.PasswordHash == "" {
		t.Error("admin has no password hash")
	}
}

func TestCreateAndValidate(t *testing.T) {
	s, _ := newTestStore(t)

	user, err := s.Create("alice", "Secret1!", "alice@example.com", RoleUser)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("user has no id")
	}

	got, err := s.Validate("alice", "Secret1!")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("Validate returned %v, want user %s", got, user.ID)
	}
	if got.LastLoginAt == nil {
		t.Error("LastLoginAt not set after login")
	}

	if wrong, _ := s.Validate("alice", "wrong"); wrong != nil {
		t.Error("wrong password must not validate")
	}
	if unknown, _ := s.Validate("nobody", "Secret1!"); unknown != nil {
		t.Error("unknown user must not validate")
	}
}

func TestCreate_DuplicateUsernameCaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Create("Alice", "pw1", "", RoleUser); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := s.Create("ALICE", "pw2", "", RoleUser)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetByUsername_CaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)
	created, err := s.Create("Bob", "pw", "", RoleUser)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, name := range []string{"bob", "BOB", "Bob", " bob "} {
		got, err := s.GetByUsername(name)
		if err != nil {
			t.Errorf("GetByUsername(%q) failed: %v", name, err)
			continue
		}
		if got.ID != created.ID {
			t.Errorf("GetByUsername(%q) = %s, want %s", name, got.ID, created.ID)
		}
	}
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	s, dir := newTestStore(t)
	user, err := s.Create("carol", "pw", "carol@example.com", RoleUser)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reopened, err := New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.GetByID(user.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen failed: %v", err)
	}
	if got.Username != "carol" || got.Email != "carol@example.com" {
		t.Errorf("reloaded user = %+v", got)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Error("password hash changed across reload")
	}

	// The password still validates against the reloaded salt and hash.
	if v, _ := reopened.Validate("carol", "pw"); v == nil {
		t.Error("password no longer validates after reload")
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	user, err := s.Create("dave", "pw", "", RoleUser)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	user.Email = "dave@example.com"
	if err := s.Update(user); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := s.GetByID(user.ID)
	if got.Email != "dave@example.com" {
		t.Errorf("email = %q", got.Email)
	}

	missing := &User{ID: "no-such-id", Username: "x"}
	if err := s.Update(missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
