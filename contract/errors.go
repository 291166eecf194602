package contract

import "errors"

var (
	// ErrNotAuthorized is returned when the transaction sender lacks the
	// role an operation requires.
	ErrNotAuthorized = errors.New("sender not authorized for operation")

	// ErrSuperAdminExists is returned by createSuperAdmin once the
	// application has been bootstrapped.
	ErrSuperAdminExists = errors.New("super admin already exists")

	// ErrUserNotFound is returned when no record exists for the requested
	// user.
	ErrUserNotFound = errors.New("user not found")

	// ErrRequestNotFound is returned when the user request collection does
	// not hold the requested id. Removal with an unknown id reports this
	// error and leaves the collection unchanged.
	ErrRequestNotFound = errors.New("user request not found")

	// ErrRoomNotFound is returned when no data room exists under the
	// requested id.
	ErrRoomNotFound = errors.New("data room not found")

	// ErrRoomExists is returned when creating a data room under an id that
	// is already taken.
	ErrRoomExists = errors.New("data room already exists")

	// ErrRoomLocked is returned when modifying a data room that has been
	// locked.
	ErrRoomLocked = errors.New("data room is locked")

	// ErrNoStorageKey is returned when exporting the storage server key
	// before one has been generated.
	ErrNoStorageKey = errors.New("no storage server key set")

	// ErrNoTokenIdentity is returned when minting upload tokens before a
	// token signing identity is available.
	ErrNoTokenIdentity = errors.New("no token identity set")

	// ErrInvalidPayload is returned when an operation payload does not
	// decode or fails validation.
	ErrInvalidPayload = errors.New("invalid operation payload")

	// ErrTokenInvalid is returned when an upload token signature does not
	// verify.
	ErrTokenInvalid = errors.New("upload token signature invalid")

	// ErrTokenExpired is returned when an upload token is past its expiry.
	ErrTokenExpired = errors.New("upload token expired")

	// ErrDigestMismatch is returned when uploaded content does not hash to
	// the digest its token was minted for.
	ErrDigestMismatch = errors.New("uploaded content does not match token digest")
)
