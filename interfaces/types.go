package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

// AppID identifies the contract application a transaction targets.
type AppID string

// NewAppID creates an application identifier with validation.
func NewAppID(id string) (AppID, error) {
	if id == "" {
		return "", errors.New("empty application identifier")
	}
	return AppID(id), nil
}

// String returns the application identifier as a string.
func (id AppID) String() string {
	return string(id)
}

// Validate checks the application identifier is well formed.
func (id AppID) Validate() error {
	_, err := NewAppID(string(id))
	return err
}

// RequestID tags a single transaction. Results pushed through the
// notification channel carry the request ID of the transaction that produced
// them. Tags are of the form "<operation>-<uuid>"; uniqueness comes from the
// uuid suffix, not the operation name.
type RequestID string

// String returns the request ID as a string.
func (id RequestID) String() string {
	return string(id)
}

// Validate checks the request ID is well formed.
func (id RequestID) Validate() error {
	if id == "" {
		return errors.New("empty request ID")
	}
	return nil
}

// UserID identifies a user. In production this is the caller's key identity
// as reported by the runtime; the development gateway takes it from the
// transaction envelope.
type UserID string

// NewUserID creates a user identifier with validation.
func NewUserID(id string) (UserID, error) {
	if id == "" {
		return "", errors.New("empty user identifier")
	}
	return UserID(id), nil
}

// String returns the user identifier as a string.
func (id UserID) String() string {
	return string(id)
}

// Validate checks the user identifier is well formed.
func (id UserID) Validate() error {
	_, err := NewUserID(string(id))
	return err
}

// UserRequestID identifies a pending access request owned by the
// UserRequests collection.
type UserRequestID string

// NewUserRequestID creates a user request identifier with validation.
func NewUserRequestID(id string) (UserRequestID, error) {
	if id == "" {
		return "", errors.New("empty user request identifier")
	}
	return UserRequestID(id), nil
}

// String returns the user request identifier as a string.
func (id UserRequestID) String() string {
	return string(id)
}

// Validate checks the user request identifier is well formed.
func (id UserRequestID) Validate() error {
	_, err := NewUserRequestID(string(id))
	return err
}

// RoomID identifies a data room.
type RoomID string

// NewRoomID creates a room identifier with validation. Room identifiers
// appear in URL paths, so path separators are rejected.
func NewRoomID(id string) (RoomID, error) {
	if id == "" {
		return "", errors.New("empty room identifier")
	}
	if strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("invalid room identifier %q: must not contain path separators", id)
	}
	return RoomID(id), nil
}

// String returns the room identifier as a string.
func (id RoomID) String() string {
	return string(id)
}

// Validate checks the room identifier is well formed.
func (id RoomID) Validate() error {
	_, err := NewRoomID(string(id))
	return err
}

// Role is a per-room permission level granted to a user.
type Role string

const (
	// RoleViewer may read room content.
	RoleViewer Role = "viewer"
	// RoleContributor may read room content and add files.
	RoleContributor Role = "contributor"
	// RoleAdmin may additionally manage rooms, users and identities.
	RoleAdmin Role = "admin"
)

// NewRole creates a role with validation.
func NewRole(role string) (Role, error) {
	switch Role(role) {
	case RoleViewer, RoleContributor, RoleAdmin:
		return Role(role), nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// Validate checks the role is one of the known permission levels.
func (r Role) Validate() error {
	_, err := NewRole(string(r))
	return err
}

func (r Role) rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleContributor:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether the role grants at least the permissions of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

// KeyName is a key-store reference: an opaque name used to retrieve
// previously generated or imported key material, as opposed to the raw key
// bytes.
type KeyName string

// NewKeyName creates a key-store reference with validation.
func NewKeyName(name string) (KeyName, error) {
	if name == "" {
		return "", errors.New("empty key name")
	}
	return KeyName(name), nil
}

// String returns the key name as a string.
func (n KeyName) String() string {
	return string(n)
}

// Validate checks the key name is well formed.
func (n KeyName) Validate() error {
	_, err := NewKeyName(string(n))
	return err
}
