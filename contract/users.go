package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

const (
	usersTable      = "users"
	identitiesTable = "identities"

	superAdminRow    = "superAdmin"
	tokenIdentityRow = "tokenIdentity"
)

// User is an approved participant: per-room role grants plus the super
// admin flag. One row per user id in the users table.
type User struct {
	ID         interfaces.UserID                     `json:"id"`
	SuperAdmin bool                                  `json:"superAdmin"`
	Roles      map[interfaces.RoomID]interfaces.Role `json:"roles"`
	CreatedAt  time.Time                             `json:"createdAt"`
}

// RoleFor returns the user's role on a room. Super admins hold the admin
// role on every room.
func (u User) RoleFor(roomID interfaces.RoomID) (interfaces.Role, bool) {
	if u.SuperAdmin {
		return interfaces.RoleAdmin, true
	}
	role, ok := u.Roles[roomID]
	return role, ok
}

// Users is the ledger-backed user directory.
type Users struct {
	table interfaces.Table
}

// NewUsers binds the directory to its ledger table.
func NewUsers(ledger interfaces.Ledger) *Users {
	return &Users{table: ledger.Table(usersTable)}
}

// Get returns the record stored under id, or ErrUserNotFound.
func (u *Users) Get(ctx context.Context, id interfaces.UserID) (User, error) {
	data, err := u.table.Get(ctx, id.String())
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	} else if err != nil {
		return User{}, fmt.Errorf("could not read user %s: %w", id, err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("corrupt user record %s: %w", id, err)
	}
	return user, nil
}

// Save persists the user record under its id.
func (u *Users) Save(ctx context.Context, user User) error {
	if err := user.ID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("could not serialize user record: %w", err)
	}
	if err := u.table.Set(ctx, user.ID.String(), data); err != nil {
		return fmt.Errorf("could not persist user %s: %w", user.ID, err)
	}
	return nil
}

// Grant records a role for the user on a room, creating the user record if
// none exists yet. A grant on a room the user already holds a role on
// replaces that role. Returns the updated record.
func (u *Users) Grant(ctx context.Context, id interfaces.UserID, roomID interfaces.RoomID, role interfaces.Role) (User, error) {
	user, err := u.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		user = User{ID: id, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return User{}, err
	}

	if user.Roles == nil {
		user.Roles = make(map[interfaces.RoomID]interfaces.Role)
	}
	user.Roles[roomID] = role

	if err := u.Save(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

type superAdminRecord struct {
	UserID interfaces.UserID `json:"userId"`
}

type tokenIdentityRecord struct {
	KeyName interfaces.KeyName `json:"keyName"`
}

// Identities holds the application's singleton identity rows: which user
// is the super admin and which key endorses upload tokens.
type Identities struct {
	table interfaces.Table
}

// NewIdentities binds the identity rows to their ledger table.
func NewIdentities(ledger interfaces.Ledger) *Identities {
	return &Identities{table: ledger.Table(identitiesTable)}
}

// SuperAdmin returns the super admin's user id, empty before bootstrap.
func (i *Identities) SuperAdmin(ctx context.Context) (interfaces.UserID, error) {
	data, err := i.table.Get(ctx, superAdminRow)
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("could not read super admin identity: %w", err)
	}

	var record superAdminRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return "", fmt.Errorf("corrupt super admin identity: %w", err)
	}
	return record.UserID, nil
}

// SetSuperAdmin records the super admin's user id.
func (i *Identities) SetSuperAdmin(ctx context.Context, id interfaces.UserID) error {
	data, err := json.Marshal(superAdminRecord{UserID: id})
	if err != nil {
		return fmt.Errorf("could not serialize super admin identity: %w", err)
	}
	if err := i.table.Set(ctx, superAdminRow, data); err != nil {
		return fmt.Errorf("could not persist super admin identity: %w", err)
	}
	return nil
}

// TokenIdentity returns the key reference endorsing upload tokens, empty
// when none is configured.
func (i *Identities) TokenIdentity(ctx context.Context) (interfaces.KeyName, error) {
	data, err := i.table.Get(ctx, tokenIdentityRow)
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("could not read token identity: %w", err)
	}

	var record tokenIdentityRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return "", fmt.Errorf("corrupt token identity: %w", err)
	}
	return record.KeyName, nil
}

// SetTokenIdentity records which key endorses upload tokens.
func (i *Identities) SetTokenIdentity(ctx context.Context, name interfaces.KeyName) error {
	data, err := json.Marshal(tokenIdentityRecord{KeyName: name})
	if err != nil {
		return fmt.Errorf("could not serialize token identity: %w", err)
	}
	if err := i.table.Set(ctx, tokenIdentityRow, data); err != nil {
		return fmt.Errorf("could not persist token identity: %w", err)
	}
	return nil
}

// ClearTokenIdentity removes the token identity row.
func (i *Identities) ClearTokenIdentity(ctx context.Context) error {
	if err := i.table.Delete(ctx, tokenIdentityRow); err != nil {
		return fmt.Errorf("could not clear token identity: %w", err)
	}
	return nil
}
