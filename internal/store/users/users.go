// Package users persists user records and validates credentials. Passwords
// are never stored; each user carries a random salt and a PBKDF2-SHA256
// derivation of the password.
package users

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"

	"github.com/sxlmons/filelink/internal/store"
	"github.com/sxlmons/filelink/internal/store/jsondoc"
	"github.com/sxlmons/filelink/pkg/constants"
)

// Role classifies a user account.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// User is one account record. The JSON field names are the on-disk contract.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	PasswordSalt []byte     `json:"passwordSalt"`
	PasswordHash string     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// catalog is the aggregate bootstrap document at <root>/users.json.
type catalog struct {
	Users []*User `json:"users"`
}

// Store keeps the user set in memory and persists every mutation. Usernames
// are unique case-insensitively after NFKC normalization.
type Store struct {
	mu     sync.RWMutex
	root   string
	byID   map[string]*User
	byName map[string]*User // key: normalized username
	logger *zap.Logger
}

// normalize folds a username for case-insensitive comparison.
func normalize(username string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(username)))
}

// New opens the store rooted at dir, loading the aggregate catalog. An empty
// store bootstraps a default admin with a random password, logged at Warn so
// operators can rotate it.
func New(dir string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		root:   dir,
		byID:   make(map[string]*User),
		byName: make(map[string]*User),
		logger: logger.Named("users"),
	}

	var cat catalog
	if _, err := jsondoc.Load(s.catalogPath(), &cat, s.logger); err != nil {
		return nil, err
	}
	for _, u := range cat.Users {
		s.byID[u.ID] = u
		s.byName[normalize(u.Username)] = u
	}

	if len(s.byID) == 0 {
		password, err := randomPassword()
		if err != nil {
			return nil, err
		}
		admin, err := s.Create("admin", password, "admin@localhost", RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap admin user: %w", err)
		}
		s.logger.Warn("no users found, created default admin with a random password",
			zap.String("username", admin.Username),
			zap.String("password", password))
	}
	return s, nil
}

func (s *Store) catalogPath() string {
	return filepath.Join(s.root, "users.json")
}

func (s *Store) userPath(id string) string {
	return filepath.Join(s.root, id, "user.json")
}

func randomPassword() (string, error) {
	var raw [15]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return strings.ToLower(base32.StdEncoding.EncodeToString(raw[:])), nil
}

// deriveKey runs the PBKDF2-SHA256 derivation with the store's parameters.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, constants.KDFIterations, constants.KeySize, sha256.New)
}

// Create adds a new user. Returns store.ErrAlreadyExists when the username
// is taken (case-insensitive).
func (s *Store) Create(username, password, email string, role Role) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(username)
	if _, ok := s.byName[key]; ok {
		return nil, fmt.Errorf("username %q: %w", username, store.ErrAlreadyExists)
	}

	salt := make([]byte, constants.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordSalt: salt,
		PasswordHash: base64.StdEncoding.EncodeToString(deriveKey(password, salt)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.byID[user.ID] = user
	s.byName[key] = user
	if err := s.persistLocked(user); err != nil {
		delete(s.byID, user.ID)
		delete(s.byName, key)
		return nil, err
	}
	return user, nil
}

// GetByID returns the user with the given id.
func (s *Store) GetByID(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return u, nil
}

// GetByUsername returns the user with the given username, case-insensitive.
func (s *Store) GetByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byName[normalize(username)]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return u, nil
}

// Validate checks a username/password pair. On success the user's
// LastLoginAt is updated and persisted and the user is returned. An unknown
// user and a bad password both return nil with no error so callers cannot
// tell them apart; an error is returned only when the stored hash cannot be
// decoded or the login time cannot be persisted.
func (s *Store) Validate(username, password string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byName[normalize(username)]
	if !ok {
		// Burn a derivation anyway so the timing does not reveal
		// whether the username exists.
		deriveKey(password, make([]byte, constants.SaltSize))
		return nil, nil
	}

	stored, err := base64.StdEncoding.DecodeString(u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("stored hash for %q is unreadable: %w", u.Username, err)
	}
	derived := deriveKey(password, u.PasswordSalt)
	if subtle.ConstantTimeCompare(stored, derived) != 1 {
		return nil, nil
	}

	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	if err := s.persistLocked(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update replaces the stored record for user.ID.
func (s *Store) Update(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, store.ErrNotFound)
	}
	if normalize(existing.Username) != normalize(user.Username) {
		if _, taken := s.byName[normalize(user.Username)]; taken {
			return fmt.Errorf("username %q: %w", user.Username, store.ErrAlreadyExists)
		}
		delete(s.byName, normalize(existing.Username))
		s.byName[normalize(user.Username)] = user
	}
	user.UpdatedAt = time.Now().UTC()
	s.byID[user.ID] = user
	return s.persistLocked(user)
}

// persistLocked writes the per-user record and the aggregate catalog. The
// caller holds the write lock.
func (s *Store) persistLocked(user *User) error {
	if err := jsondoc.Save(s.userPath(user.ID), user); err != nil {
		return err
	}
	cat := catalog{Users: make([]*User, 0, len(s.byID))}
	for _, u := range s.byID {
		cat.Users = append(cat.Users, u)
	}
	return jsondoc.Save(s.catalogPath(), &cat)
}
