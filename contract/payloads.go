package contract

import "github.com/ruteri/tee-dataroom-backend/interfaces"

// Operation parameters. Transactions carry these as JSON; field names are
// part of the wire surface shared with the client SDK.

// CreateUserParams is the createUserRequest payload: the room and role
// being asked for.
type CreateUserParams struct {
	DataRoomID interfaces.RoomID `json:"dataRoomId"`
	Role       interfaces.Role   `json:"role"`
}

// ApproveUserParams is the approveUserRequest payload.
type ApproveUserParams struct {
	RequestID interfaces.UserRequestID `json:"requestId"`
}

// ExportKeyParams is the exportStorageServerPrivateKey payload. An empty
// format defaults to raw.
type ExportKeyParams struct {
	Format string `json:"format,omitempty"`
}

// SetTokenIdentityParams is the setTokenIdentity payload.
type SetTokenIdentityParams struct {
	KeyName interfaces.KeyName `json:"keyName"`
}

// CreateDataRoomParams is the createDataRoom payload. An empty id lets the
// contract assign one.
type CreateDataRoomParams struct {
	DataRoomID interfaces.RoomID `json:"dataRoomId,omitempty"`
}

// FileEntryParams describes one file entry in an updateDataRoom payload.
type FileEntryParams struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Size   int64  `json:"size,omitempty"`
}

// UpdateDataRoomParams is the updateDataRoom payload: file entries to add
// and optionally a lock request.
type UpdateDataRoomParams struct {
	DataRoomID interfaces.RoomID `json:"dataRoomId"`
	AddFiles   []FileEntryParams `json:"addFiles,omitempty"`
	Lock       bool              `json:"lock,omitempty"`
}

// UploadTokenParams is the getFileUploadToken payload.
type UploadTokenParams struct {
	DataRoomID interfaces.RoomID `json:"dataRoomId"`
	Digest     string            `json:"digest"`
}

// RoomContentParams is the getDataRoomContent payload.
type RoomContentParams struct {
	DataRoomID interfaces.RoomID `json:"dataRoomId"`
}

// KeyImportSpec is the key half of an importKey payload. KeyData is base64
// for binary formats and may carry PEM armor, which is stripped before the
// material reaches the key store.
type KeyImportSpec struct {
	Format      string   `json:"format"`
	KeyData     string   `json:"keyData"`
	Algorithm   string   `json:"algorithm,omitempty"`
	Extractable bool     `json:"extractable,omitempty"`
	Usages      []string `json:"usages,omitempty"`
}

// ImportKeyParams is the importKey payload.
type ImportKeyParams struct {
	KeyName interfaces.KeyName `json:"keyName"`
	Key     KeyImportSpec      `json:"key"`
}

// KeyParams names an existing key, for getPublicKey.
type KeyParams struct {
	KeyName interfaces.KeyName `json:"keyName"`
}

// SignParams is the sign payload.
type SignParams struct {
	KeyName interfaces.KeyName `json:"keyName"`
	Data    []byte             `json:"data"`
}

// VerifyParams is the verify payload.
type VerifyParams struct {
	KeyName   interfaces.KeyName `json:"keyName"`
	Data      []byte             `json:"data"`
	Signature []byte             `json:"signature"`
}

// Result payloads pushed through the notifier.

// MessageResult carries a human-readable status message.
type MessageResult struct {
	Message string `json:"message"`
}

// UserRequestListResult lists pending access request ids.
type UserRequestListResult struct {
	IDs []interfaces.UserRequestID `json:"ids"`
}

// DataRoomListResult lists the room ids visible to the sender.
type DataRoomListResult struct {
	IDs []interfaces.RoomID `json:"ids"`
}

// PublicKeysResult carries the PEM public halves of both server keys.
type PublicKeysResult struct {
	KlaveServerPublicKey   string `json:"klaveServerPublicKey"`
	StorageServerPublicKey string `json:"storageServerPublicKey"`
}

// ExportedKey carries exported private key material as text: base64 for
// raw and pkcs8, the PEM armor itself for pem.
type ExportedKey struct {
	Format interfaces.ExportFormat `json:"format"`
	Key    string                  `json:"key"`
}

// PublicKeyResult carries one key's PEM public half.
type PublicKeyResult struct {
	KeyName   interfaces.KeyName `json:"keyName"`
	PublicKey string             `json:"publicKey"`
}

// SignatureResult carries a signature produced by the sign operation.
type SignatureResult struct {
	KeyName   interfaces.KeyName `json:"keyName"`
	Signature []byte             `json:"signature"`
}

// VerifyResult carries the outcome of signature verification.
type VerifyResult struct {
	Valid bool `json:"valid"`
}
