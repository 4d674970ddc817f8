package auth

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/segadb/segadb/internal/database"
	"github.com/segadb/segadb/internal/table"
)

// UsersTable is the reserved table holding registered users.
const UsersTable = "_users"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session token")
)

// Manager registers and authenticates users against a reserved table in
// the database and tracks login sessions by token.
type Manager struct {
	db       *database.Database
	users    *table.Table
	mu       sync.RWMutex
	sessions map[string]string // token -> username
}

func NewManager(db *database.Database) (*Manager, error) {
	users, err := db.GetTable(UsersTable)
	if err != nil {
		users, err = db.CreateTable(UsersTable, []string{"username", "password", "roles"})
		if err != nil {
			return nil, errors.Wrap(err, "creating users table")
		}
		if err := users.AddUnique("username"); err != nil {
			return nil, err
		}
	}
	return &Manager{db: db, users: users, sessions: map[string]string{}}, nil
}

func (m *Manager) Register(username, password string, roles ...Role) (*User, error) {
	if username == "" {
		return nil, errors.New("username must not be empty")
	}
	user, err := NewUser(username, password, roles...)
	if err != nil {
		return nil, err
	}
	err = m.users.Insert(map[string]any{
		"username": user.Username,
		"password": string(user.Password),
		"roles":    joinRoles(user.Roles),
	})
	if err != nil {
		if _, ok := err.(*table.ConstraintError); ok {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

func (m *Manager) GetUser(username string) (*User, error) {
	id, ok := m.users.GetIDByColumn("username", username)
	if !ok {
		return nil, ErrUserNotFound
	}
	rec, ok := m.users.Get(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	password, _ := rec.Data.Get("password").(string)
	rolesField, _ := rec.Data.Get("roles").(string)
	return &User{
		Username: username,
		Password: []byte(password),
		Roles:    splitRoles(rolesField),
	}, nil
}

func (m *Manager) Authenticate(username, password string) (*User, error) {
	user, err := m.GetUser(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.ValidatePassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (m *Manager) RemoveUser(username string) error {
	id, ok := m.users.GetIDByColumn("username", username)
	if !ok {
		return ErrUserNotFound
	}
	if err := m.users.Delete(id); err != nil {
		return err
	}
	m.mu.Lock()
	for token, name := range m.sessions {
		if name == username {
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()
	return nil
}

// Login authenticates the user and opens a session, returning its token.
func (m *Manager) Login(username, password string) (string, error) {
	if _, err := m.Authenticate(username, password); err != nil {
		return "", err
	}
	token := uuid.NewString()
	m.mu.Lock()
	m.sessions[token] = username
	m.mu.Unlock()
	return token, nil
}

// Session resolves a login token to its user.
func (m *Manager) Session(token string) (*User, error) {
	m.mu.RLock()
	username, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidSession
	}
	return m.GetUser(username)
}

func (m *Manager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func splitRoles(s string) []Role {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := make([]Role, len(parts))
	for i, p := range parts {
		roles[i] = Role(p)
	}
	return roles
}
