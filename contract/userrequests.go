package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

const userRequestsTable = "userRequests"

// allRow is the fixed row key under which a collection persists its full
// listing. Child records live in the same table, one row per id.
const allRow = "ALL"

// UserRequest is a pending access request: a user asking for a role on a
// data room. Requests are held until a super admin approves or removes
// them.
type UserRequest struct {
	ID         interfaces.UserRequestID `json:"id"`
	Requester  interfaces.UserID        `json:"requester"`
	DataRoomID interfaces.RoomID        `json:"dataRoomId"`
	Role       interfaces.Role          `json:"role"`
	CreatedAt  time.Time                `json:"createdAt"`
}

// NewUserRequest creates a pending access request with a fresh unique id.
func NewUserRequest(requester interfaces.UserID, roomID interfaces.RoomID, role interfaces.Role) UserRequest {
	return UserRequest{
		ID:         interfaces.UserRequestID(uuid.NewString()),
		Requester:  requester,
		DataRoomID: roomID,
		Role:       role,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks the request fields are well formed.
func (req UserRequest) Validate() error {
	if err := req.ID.Validate(); err != nil {
		return err
	}
	if err := req.Requester.Validate(); err != nil {
		return err
	}
	if err := req.DataRoomID.Validate(); err != nil {
		return err
	}
	return req.Role.Validate()
}

type userRequestIndex struct {
	IDs []interfaces.UserRequestID `json:"ids"`
}

// UserRequests is the ledger-backed collection of pending access requests.
// The id listing is persisted as one JSON blob under the allRow key; each
// request record is a child row in the same table.
type UserRequests struct {
	table interfaces.Table
	ids   []interfaces.UserRequestID
}

// LoadUserRequests reads the collection from the ledger. An absent index
// row yields an empty collection rather than an error.
func LoadUserRequests(ctx context.Context, ledger interfaces.Ledger) (*UserRequests, error) {
	requests := &UserRequests{table: ledger.Table(userRequestsTable)}

	data, err := requests.table.Get(ctx, allRow)
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return requests, nil
	} else if err != nil {
		return nil, fmt.Errorf("could not read user request index: %w", err)
	}

	var index userRequestIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("corrupt user request index: %w", err)
	}

	requests.ids = index.IDs
	return requests, nil
}

// Save persists the id listing. Saving an unchanged collection is
// harmless.
func (r *UserRequests) Save(ctx context.Context) error {
	data, err := json.Marshal(userRequestIndex{IDs: r.ids})
	if err != nil {
		return fmt.Errorf("could not serialize user request index: %w", err)
	}

	if err := r.table.Set(ctx, allRow, data); err != nil {
		return fmt.Errorf("could not persist user request index: %w", err)
	}
	return nil
}

// IDs returns the ids of all pending requests in insertion order.
func (r *UserRequests) IDs() []interfaces.UserRequestID {
	ids := make([]interfaces.UserRequestID, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Get returns the request record stored under id.
func (r *UserRequests) Get(ctx context.Context, id interfaces.UserRequestID) (UserRequest, error) {
	data, err := r.table.Get(ctx, id.String())
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return UserRequest{}, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	} else if err != nil {
		return UserRequest{}, fmt.Errorf("could not read user request %s: %w", id, err)
	}

	var req UserRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return UserRequest{}, fmt.Errorf("corrupt user request %s: %w", id, err)
	}
	return req, nil
}

// Add persists the request as a child row and appends its id to the
// listing. The listing is persisted along with it.
func (r *UserRequests) Add(ctx context.Context, req UserRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for _, id := range r.ids {
		if id == req.ID {
			return fmt.Errorf("%w: duplicate user request id %s", ErrInvalidPayload, req.ID)
		}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("could not serialize user request: %w", err)
	}
	if err := r.table.Set(ctx, req.ID.String(), data); err != nil {
		return fmt.Errorf("could not persist user request %s: %w", req.ID, err)
	}

	r.ids = append(r.ids, req.ID)
	return r.Save(ctx)
}

// Remove deletes the request row and drops its id from the listing. An
// unknown id leaves the collection unchanged and reports
// ErrRequestNotFound.
func (r *UserRequests) Remove(ctx context.Context, id interfaces.UserRequestID) error {
	at := -1
	for i, known := range r.ids {
		if known == id {
			at = i
			break
		}
	}
	if at == -1 {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}

	if err := r.table.Delete(ctx, id.String()); err != nil {
		return fmt.Errorf("could not delete user request %s: %w", id, err)
	}

	r.ids = append(r.ids[:at], r.ids[at+1:]...)
	return r.Save(ctx)
}

// DeleteAll removes every request row, resets the collection to empty and
// persists the empty listing.
func (r *UserRequests) DeleteAll(ctx context.Context) error {
	for _, id := range r.ids {
		if err := r.table.Delete(ctx, id.String()); err != nil {
			return fmt.Errorf("could not delete user request %s: %w", id, err)
		}
	}

	r.ids = nil
	return r.Save(ctx)
}
