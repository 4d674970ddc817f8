package auth

import (
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEditor   Role = "editor"
	RoleReadOnly Role = "read_only"
)

type Permission string

const (
	PermCreateTable Permission = "create_table"
	PermDropTable   Permission = "drop_table"
	PermInsert      Permission = "insert"
	PermSelect      Permission = "select"
	PermUpdate      Permission = "update"
	PermDelete      Permission = "delete"
	PermTransaction Permission = "transaction"
	PermManageUsers Permission = "manage_users"
)

var presetRoles = map[Role][]Permission{
	RoleAdmin: {
		PermCreateTable, PermDropTable, PermInsert, PermSelect,
		PermUpdate, PermDelete, PermTransaction, PermManageUsers,
	},
	RoleEditor: {
		PermInsert, PermSelect, PermUpdate, PermDelete, PermTransaction,
	},
	RoleReadOnly: {PermSelect},
}

// RolePermissions returns the permissions granted by a preset role,
// or nil for an unknown role.
func RolePermissions(r Role) []Permission {
	perms, ok := presetRoles[r]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

type User struct {
	Username string
	Password []byte
	Roles    []Role
}

func NewUser(username, password string, roles ...Role) (*User, error) {
	// password max size is 72 bytes because of bcrypt limit
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []Role{RoleReadOnly}
	}
	return &User{Username: username, Password: hashed, Roles: roles}, nil
}

func (u *User) ValidatePassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.Password, []byte(password)) == nil
}

func (u *User) HasPermission(p Permission) bool {
	for _, role := range u.Roles {
		for _, perm := range presetRoles[role] {
			if perm == p {
				return true
			}
		}
	}
	return false
}

func (u *User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}
