package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ruteri/tee-dataroom-backend/contract"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// Client exposes every contract operation as a typed, synchronous method.
// It adapts the transaction callback surface of interfaces.Conn into plain
// (result, error) returns.
type Client struct {
	conn interfaces.Conn
	app  interfaces.AppID
	log  *slog.Logger
}

// NewClient creates a client issuing transactions for app over conn.
func NewClient(conn interfaces.Conn, app interfaces.AppID, log *slog.Logger) *Client {
	return &Client{
		conn: conn,
		app:  app,
		log:  log,
	}
}

// transact runs one named operation: wait for connection readiness, tag the
// request, send, and block until the first result payload, a remote error,
// or ctx is done. Operations push exactly one result; should one ever push
// more, the first payload resolves the call and the rest are dropped.
//
// Cancelling ctx abandons the call client-side only; a transaction already
// submitted is not recalled.
func transact[T any](ctx context.Context, c *Client, op interfaces.Operation, payload any) (T, error) {
	var zero T

	if err := c.conn.WaitReady(ctx); err != nil {
		return zero, err
	}

	requestID := interfaces.RequestID(fmt.Sprintf("%s-%s", op, uuid.NewString()))
	tx, err := c.conn.NewTx(c.app, op, requestID, payload)
	if err != nil {
		return zero, err
	}

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)
	tx.OnResult(func(payload json.RawMessage) {
		select {
		case resultCh <- payload:
		default:
		}
	})
	tx.OnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	if err := tx.Send(ctx); err != nil {
		return zero, err
	}

	select {
	case raw := <-resultCh:
		var result T
		if err := json.Unmarshal(raw, &result); err != nil {
			return zero, fmt.Errorf("could not decode %s result: %w", op, err)
		}
		c.log.Debug("Transaction resolved", slog.String("requestId", requestID.String()))
		return result, nil
	case err := <-errCh:
		c.log.Debug("Transaction failed", slog.String("requestId", requestID.String()), "err", err)
		return zero, err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// CreateSuperAdmin bootstraps the caller as the contract's super admin and
// generates the initial server keys. Fails once an admin exists.
func (c *Client) CreateSuperAdmin(ctx context.Context) (contract.User, error) {
	return transact[contract.User](ctx, c, interfaces.OpCreateSuperAdmin, nil)
}

// CreateUser issues createUserRequest: the caller asks for a role in a data
// room. The returned request awaits super admin approval.
func (c *Client) CreateUser(ctx context.Context, roomID interfaces.RoomID, role interfaces.Role) (contract.UserRequest, error) {
	return transact[contract.UserRequest](ctx, c, interfaces.OpCreateUserRequest, contract.CreateUserParams{
		DataRoomID: roomID,
		Role:       role,
	})
}

// GetUserContent returns the caller's own user record.
func (c *Client) GetUserContent(ctx context.Context) (contract.User, error) {
	return transact[contract.User](ctx, c, interfaces.OpGetUserContent, nil)
}

// ListUsers issues listUserRequests and returns the pending request ids,
// empty when there are none. Super admin only.
func (c *Client) ListUsers(ctx context.Context) ([]interfaces.UserRequestID, error) {
	result, err := transact[contract.UserRequestListResult](ctx, c, interfaces.OpListUserRequests, nil)
	if err != nil {
		return nil, err
	}
	return result.IDs, nil
}

// ApproveUser issues approveUserRequest: converts the pending request into
// a role grant and removes it. Returns the updated user record. Super admin
// only.
func (c *Client) ApproveUser(ctx context.Context, requestID interfaces.UserRequestID) (contract.User, error) {
	return transact[contract.User](ctx, c, interfaces.OpApproveUserRequest, contract.ApproveUserParams{
		RequestID: requestID,
	})
}

// ResetIdentities forgets both server key references and generates fresh
// server keys. Outstanding upload tokens stop verifying. Super admin only.
func (c *Client) ResetIdentities(ctx context.Context) (contract.PublicKeysResult, error) {
	return transact[contract.PublicKeysResult](ctx, c, interfaces.OpResetIdentities, nil)
}

// ExportStorageServerPrivateKey exports the storage server private key as
// text. An empty format defaults to raw. Super admin only.
func (c *Client) ExportStorageServerPrivateKey(ctx context.Context, format interfaces.ExportFormat) (contract.ExportedKey, error) {
	return transact[contract.ExportedKey](ctx, c, interfaces.OpExportStorageServerPrivateKey, contract.ExportKeyParams{
		Format: format.String(),
	})
}

// SetTokenIdentity points upload token endorsement at the named key. Super
// admin only.
func (c *Client) SetTokenIdentity(ctx context.Context, keyName interfaces.KeyName) error {
	_, err := transact[contract.MessageResult](ctx, c, interfaces.OpSetTokenIdentity, contract.SetTokenIdentityParams{
		KeyName: keyName,
	})
	return err
}

// CreateDataRoom creates an open data room. An empty roomID lets the
// contract assign one. Super admin only.
func (c *Client) CreateDataRoom(ctx context.Context, roomID interfaces.RoomID) (contract.DataRoom, error) {
	return transact[contract.DataRoom](ctx, c, interfaces.OpCreateDataRoom, contract.CreateDataRoomParams{
		DataRoomID: roomID,
	})
}

// UpdateDataRoom adds file entries to a room and optionally locks it.
// Adding requires the contributor role, locking the admin role.
func (c *Client) UpdateDataRoom(ctx context.Context, params contract.UpdateDataRoomParams) (contract.DataRoom, error) {
	return transact[contract.DataRoom](ctx, c, interfaces.OpUpdateDataRoom, params)
}

// GetPublicKeys returns the PEM public halves of both server keys. Before
// the first bootstrap both fields are empty.
func (c *Client) GetPublicKeys(ctx context.Context) (contract.PublicKeysResult, error) {
	return transact[contract.PublicKeysResult](ctx, c, interfaces.OpGetPublicKeys, nil)
}

// GetFileUploadToken mints an upload token for content with the given
// digest. Requires the contributor role on the room.
func (c *Client) GetFileUploadToken(ctx context.Context, roomID interfaces.RoomID, digest interfaces.FileDigest) (contract.UploadToken, error) {
	return transact[contract.UploadToken](ctx, c, interfaces.OpGetFileUploadToken, contract.UploadTokenParams{
		DataRoomID: roomID,
		Digest:     digest.String(),
	})
}

// ListDataRooms returns the room ids visible to the caller: all rooms for
// the super admin, granted rooms otherwise. Empty when there are none.
func (c *Client) ListDataRooms(ctx context.Context) ([]interfaces.RoomID, error) {
	result, err := transact[contract.DataRoomListResult](ctx, c, interfaces.OpListDataRooms, nil)
	if err != nil {
		return nil, err
	}
	return result.IDs, nil
}

// GetDataRoomContent returns the room's file listing. Requires the viewer
// role.
func (c *Client) GetDataRoomContent(ctx context.Context, roomID interfaces.RoomID) (contract.DataRoom, error) {
	return transact[contract.DataRoom](ctx, c, interfaces.OpGetDataRoomContent, contract.RoomContentParams{
		DataRoomID: roomID,
	})
}

// ImportKey stores externally supplied key material under a reference name
// and returns its public half. Super admin only.
func (c *Client) ImportKey(ctx context.Context, keyName interfaces.KeyName, key contract.KeyImportSpec) (contract.PublicKeyResult, error) {
	return transact[contract.PublicKeyResult](ctx, c, interfaces.OpImportKey, contract.ImportKeyParams{
		KeyName: keyName,
		Key:     key,
	})
}

// GetPublicKey returns the PEM public half of a named key.
func (c *Client) GetPublicKey(ctx context.Context, keyName interfaces.KeyName) (contract.PublicKeyResult, error) {
	return transact[contract.PublicKeyResult](ctx, c, interfaces.OpGetPublicKey, contract.KeyParams{
		KeyName: keyName,
	})
}

// Sign signs data with a named key. Super admin only.
func (c *Client) Sign(ctx context.Context, keyName interfaces.KeyName, data []byte) (contract.SignatureResult, error) {
	return transact[contract.SignatureResult](ctx, c, interfaces.OpSign, contract.SignParams{
		KeyName: keyName,
		Data:    data,
	})
}

// Verify checks a signature against a named key's public half.
func (c *Client) Verify(ctx context.Context, keyName interfaces.KeyName, data, signature []byte) (bool, error) {
	result, err := transact[contract.VerifyResult](ctx, c, interfaces.OpVerify, contract.VerifyParams{
		KeyName:   keyName,
		Data:      data,
		Signature: signature,
	})
	if err != nil {
		return false, err
	}
	return result.Valid, nil
}
