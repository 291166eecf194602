package contract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/ruteri/tee-dataroom-backend/cryptoutils"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/ruteri/tee-dataroom-backend/keystore"
	"github.com/ruteri/tee-dataroom-backend/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *Collector, interfaces.Ledger, *keystore.Store) {
	t.Helper()

	led := ledger.NewMemoryLedger()
	store := testKeyStore(t)
	collector := NewCollector()
	app := NewApp(led, store, collector, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return app, collector, led, store
}

func marshalParams(t *testing.T, params any) json.RawMessage {
	t.Helper()
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	require.NoError(t, err, "params must serialize")
	return data
}

// runOp executes one operation expecting success and returns its single
// emitted result.
func runOp(t *testing.T, app *App, collector *Collector, sender interfaces.UserID, op interfaces.Operation, params any) json.RawMessage {
	t.Helper()

	requestID := interfaces.RequestID(op.String() + "-" + uuid.NewString())
	require.NoError(t, app.Execute(context.Background(), sender, op, requestID, marshalParams(t, params)), "operation %s must succeed", op)

	results := collector.Take(requestID)
	require.Len(t, results, 1, "operation %s must emit exactly one result", op)
	return results[0]
}

// failOp executes one operation expecting failure and asserts nothing was
// emitted for it.
func failOp(t *testing.T, app *App, collector *Collector, sender interfaces.UserID, op interfaces.Operation, params any) error {
	t.Helper()

	requestID := interfaces.RequestID(op.String() + "-" + uuid.NewString())
	err := app.Execute(context.Background(), sender, op, requestID, marshalParams(t, params))
	require.Error(t, err, "operation %s must fail", op)
	assert.Nil(t, collector.Take(requestID), "failed operation must not emit")
	return err
}

func decodeResult[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(raw, &result), "result must decode")
	return result
}

func requestAndApprove(t *testing.T, app *App, collector *Collector, admin, user interfaces.UserID, roomID interfaces.RoomID, role interfaces.Role) {
	t.Helper()
	req := decodeResult[UserRequest](t, runOp(t, app, collector, user, interfaces.OpCreateUserRequest, CreateUserParams{DataRoomID: roomID, Role: role}))
	runOp(t, app, collector, admin, interfaces.OpApproveUserRequest, ApproveUserParams{RequestID: req.ID})
}

func TestApp_CreateSuperAdmin(t *testing.T) {
	app, collector, led, store := newTestApp(t)
	ctx := context.Background()

	admin := decodeResult[User](t, runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil))
	assert.Equal(t, interfaces.UserID("admin"), admin.ID, "sender must become the super admin")
	assert.True(t, admin.SuperAdmin, "record must carry the super admin flag")

	err := failOp(t, app, collector, "intruder", interfaces.OpCreateSuperAdmin, nil)
	assert.ErrorIs(t, err, ErrSuperAdminExists, "bootstrap must be rejected once an admin exists")

	// Bootstrap generated both server keys.
	keys := decodeResult[PublicKeysResult](t, runOp(t, app, collector, "anyone", interfaces.OpGetPublicKeys, nil))
	assert.Contains(t, keys.KlaveServerPublicKey, "BEGIN PUBLIC KEY", "klave public key must be PEM")
	assert.Contains(t, keys.StorageServerPublicKey, "BEGIN PUBLIC KEY", "storage public key must be PEM")

	record, err := LoadKeys(ctx, led)
	require.NoError(t, err, "loading the key record must succeed")
	assert.True(t, record.IsSet(), "bootstrap must persist both key references")
	assert.True(t, store.Exists(ctx, record.StorageServerKey()), "storage key material must be in the store")

	// The storage server key became the initial token identity.
	tokenIdentity, err := NewIdentities(led).TokenIdentity(ctx)
	require.NoError(t, err, "reading the token identity must succeed")
	assert.Equal(t, record.StorageServerKey(), tokenIdentity, "token identity must default to the storage server key")
}

func TestApp_GetPublicKeysBeforeBootstrap(t *testing.T) {
	app, collector, _, _ := newTestApp(t)

	msg := decodeResult[MessageResult](t, runOp(t, app, collector, "anyone", interfaces.OpGetPublicKeys, nil))
	assert.Equal(t, "no keys", msg.Message, "unset keys must report the no keys message")
}

func TestApp_UserRequestFlow(t *testing.T) {
	app, collector, _, _ := newTestApp(t)

	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)
	runOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "deal-1"})

	empty := decodeResult[MessageResult](t, runOp(t, app, collector, "admin", interfaces.OpListUserRequests, nil))
	assert.Equal(t, "no user requests", empty.Message, "empty collection must report the no requests message")

	req := decodeResult[UserRequest](t, runOp(t, app, collector, "alice", interfaces.OpCreateUserRequest, CreateUserParams{DataRoomID: "deal-1", Role: interfaces.RoleViewer}))
	assert.NotEmpty(t, req.ID, "created request must carry an id")
	assert.Equal(t, interfaces.UserID("alice"), req.Requester, "request must record the sender")

	list := decodeResult[UserRequestListResult](t, runOp(t, app, collector, "admin", interfaces.OpListUserRequests, nil))
	assert.Contains(t, list.IDs, req.ID, "listing must contain the new request id")

	err := failOp(t, app, collector, "alice", interfaces.OpGetUserContent, nil)
	assert.ErrorIs(t, err, ErrUserNotFound, "unapproved requester must have no user record")

	approved := decodeResult[User](t, runOp(t, app, collector, "admin", interfaces.OpApproveUserRequest, ApproveUserParams{RequestID: req.ID}))
	assert.Equal(t, interfaces.UserID("alice"), approved.ID, "approval must create the requester's record")
	assert.Equal(t, interfaces.RoleViewer, approved.Roles["deal-1"], "approval must grant the requested role")

	empty = decodeResult[MessageResult](t, runOp(t, app, collector, "admin", interfaces.OpListUserRequests, nil))
	assert.Equal(t, "no user requests", empty.Message, "approved request must leave the collection")

	me := decodeResult[User](t, runOp(t, app, collector, "alice", interfaces.OpGetUserContent, nil))
	assert.Equal(t, interfaces.RoleViewer, me.Roles["deal-1"], "user content must reflect the grant")
}

func TestApp_ApproveUnknownRequest(t *testing.T) {
	app, collector, _, _ := newTestApp(t)
	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)

	err := failOp(t, app, collector, "admin", interfaces.OpApproveUserRequest, ApproveUserParams{RequestID: "no-such-request"})
	assert.ErrorIs(t, err, ErrRequestNotFound, "approving an unknown request must report not found")
}

func TestApp_AccessControl(t *testing.T) {
	app, collector, _, _ := newTestApp(t)
	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)
	runOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "deal-1"})

	digest := interfaces.ComputeFileDigest([]byte("content")).String()

	tests := []struct {
		name   string
		op     interfaces.Operation
		params any
	}{
		{"listUserRequests", interfaces.OpListUserRequests, nil},
		{"approveUserRequest", interfaces.OpApproveUserRequest, ApproveUserParams{RequestID: "r"}},
		{"resetIdentities", interfaces.OpResetIdentities, nil},
		{"exportStorageServerPrivateKey", interfaces.OpExportStorageServerPrivateKey, nil},
		{"setTokenIdentity", interfaces.OpSetTokenIdentity, SetTokenIdentityParams{KeyName: "k"}},
		{"createDataRoom", interfaces.OpCreateDataRoom, nil},
		{"importKey", interfaces.OpImportKey, ImportKeyParams{KeyName: "k"}},
		{"sign", interfaces.OpSign, SignParams{KeyName: "k", Data: []byte("d")}},
		{"updateDataRoom", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{DataRoomID: "deal-1", Lock: true}},
		{"getDataRoomContent", interfaces.OpGetDataRoomContent, RoomContentParams{DataRoomID: "deal-1"}},
		{"getFileUploadToken", interfaces.OpGetFileUploadToken, UploadTokenParams{DataRoomID: "deal-1", Digest: digest}},
		{"listDataRooms", interfaces.OpListDataRooms, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := failOp(t, app, collector, "mallory", tc.op, tc.params)
			assert.ErrorIs(t, err, ErrNotAuthorized, "sender without rights must be rejected")
		})
	}
}

func TestApp_DataRoomLifecycle(t *testing.T) {
	app, collector, _, _ := newTestApp(t)
	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)

	room := decodeResult[DataRoom](t, runOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "deal-1"}))
	assert.Equal(t, RoomOpen, room.State, "new room must be open")

	err := failOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "deal-1"})
	assert.ErrorIs(t, err, ErrRoomExists, "duplicate room id must be rejected")

	requestAndApprove(t, app, collector, "admin", "alice", "deal-1", interfaces.RoleContributor)
	requestAndApprove(t, app, collector, "admin", "bob", "deal-1", interfaces.RoleViewer)

	digest1 := interfaces.ComputeFileDigest([]byte("v1")).String()
	digest2 := interfaces.ComputeFileDigest([]byte("v2")).String()

	room = decodeResult[DataRoom](t, runOp(t, app, collector, "alice", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{
		DataRoomID: "deal-1",
		AddFiles:   []FileEntryParams{{Name: "report.pdf", Digest: digest1, Size: 2}},
	}))
	require.Len(t, room.Files, 1, "contributor must be able to add a file")
	assert.Equal(t, interfaces.UserID("alice"), room.Files[0].AddedBy, "entry must record who added it")

	// Re-adding the same name replaces the entry instead of duplicating
	// it.
	room = decodeResult[DataRoom](t, runOp(t, app, collector, "alice", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{
		DataRoomID: "deal-1",
		AddFiles:   []FileEntryParams{{Name: "report.pdf", Digest: digest2, Size: 2}},
	}))
	require.Len(t, room.Files, 1, "same name must not duplicate the entry")
	assert.Equal(t, digest2, room.Files[0].Digest, "latest digest must win")

	err = failOp(t, app, collector, "bob", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{
		DataRoomID: "deal-1",
		AddFiles:   []FileEntryParams{{Name: "sneaky.txt", Digest: digest1}},
	})
	assert.ErrorIs(t, err, ErrNotAuthorized, "viewer must not add files")

	content := decodeResult[DataRoom](t, runOp(t, app, collector, "bob", interfaces.OpGetDataRoomContent, RoomContentParams{DataRoomID: "deal-1"}))
	require.Len(t, content.Files, 1, "viewer must see the file listing")

	err = failOp(t, app, collector, "alice", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{DataRoomID: "deal-1", Lock: true})
	assert.ErrorIs(t, err, ErrNotAuthorized, "contributor must not lock the room")

	room = decodeResult[DataRoom](t, runOp(t, app, collector, "admin", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{DataRoomID: "deal-1", Lock: true}))
	assert.True(t, room.Locked(), "admin lock must take effect")

	err = failOp(t, app, collector, "alice", interfaces.OpUpdateDataRoom, UpdateDataRoomParams{
		DataRoomID: "deal-1",
		AddFiles:   []FileEntryParams{{Name: "late.txt", Digest: digest1}},
	})
	assert.ErrorIs(t, err, ErrRoomLocked, "locked room must reject new files")

	err = failOp(t, app, collector, "alice", interfaces.OpGetFileUploadToken, UploadTokenParams{DataRoomID: "deal-1", Digest: digest1})
	assert.ErrorIs(t, err, ErrRoomLocked, "locked room must reject upload tokens")

	content = decodeResult[DataRoom](t, runOp(t, app, collector, "bob", interfaces.OpGetDataRoomContent, RoomContentParams{DataRoomID: "deal-1"}))
	require.Len(t, content.Files, 1, "locked room must stay readable")
}

func TestApp_UploadTokenFlow(t *testing.T) {
	app, collector, led, store := newTestApp(t)
	ctx := context.Background()

	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)
	runOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "deal-1"})
	requestAndApprove(t, app, collector, "admin", "alice", "deal-1", interfaces.RoleContributor)

	content := []byte("audited financials")
	digest := interfaces.ComputeFileDigest(content)

	token := decodeResult[UploadToken](t, runOp(t, app, collector, "alice", interfaces.OpGetFileUploadToken, UploadTokenParams{DataRoomID: "deal-1", Digest: digest.String()}))
	assert.Equal(t, digest.String(), token.Digest, "token must carry the requested digest")

	issuer := NewTokenIssuer(store, NewIdentities(led))
	require.NoError(t, issuer.VerifyUpload(ctx, token, content), "token must authorize the matching content")

	err := issuer.VerifyUpload(ctx, token, []byte("swapped bytes"))
	assert.ErrorIs(t, err, ErrDigestMismatch, "token must reject other content")

	before := decodeResult[PublicKeysResult](t, runOp(t, app, collector, "anyone", interfaces.OpGetPublicKeys, nil))

	after := decodeResult[PublicKeysResult](t, runOp(t, app, collector, "admin", interfaces.OpResetIdentities, nil))
	assert.NotEqual(t, before.StorageServerPublicKey, after.StorageServerPublicKey, "reset must produce a fresh storage key")
	assert.NotEqual(t, before.KlaveServerPublicKey, after.KlaveServerPublicKey, "reset must produce a fresh klave key")

	err = issuer.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid, "identity reset must invalidate outstanding tokens")
}

func TestApp_KeyOperations(t *testing.T) {
	app, collector, _, _ := newTestApp(t)

	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)

	// Raw secp256k1 import.
	secpKey, err := cryptoutils.GenerateSecp256k1Key()
	require.NoError(t, err, "key generation must succeed")
	imported := decodeResult[PublicKeyResult](t, runOp(t, app, collector, "admin", interfaces.OpImportKey, ImportKeyParams{
		KeyName: "partner-key",
		Key: KeyImportSpec{
			Format:      "raw",
			KeyData:     base64.StdEncoding.EncodeToString(cryptoutils.PrivateKeyRaw(secpKey)),
			Algorithm:   "secp256k1",
			Extractable: true,
			Usages:      []string{"sign", "verify"},
		},
	}))
	assert.Contains(t, imported.PublicKey, "BEGIN PUBLIC KEY", "import must report the public half")

	pub := decodeResult[PublicKeyResult](t, runOp(t, app, collector, "anyone", interfaces.OpGetPublicKey, KeyParams{KeyName: "partner-key"}))
	assert.Equal(t, imported.PublicKey, pub.PublicKey, "getPublicKey must match the imported key")

	// PEM armored import: the armor is stripped before the material
	// reaches the key store.
	p256Key, err := cryptoutils.GenerateP256Key()
	require.NoError(t, err, "key generation must succeed")
	pemKey, err := cryptoutils.EncodePrivateKeyPEM(p256Key)
	require.NoError(t, err, "pem encoding must succeed")
	expectedPub, err := cryptoutils.PublicKeyToPEM(&p256Key.PublicKey)
	require.NoError(t, err, "pem encoding must succeed")

	armored := decodeResult[PublicKeyResult](t, runOp(t, app, collector, "admin", interfaces.OpImportKey, ImportKeyParams{
		KeyName: "notary-key",
		Key:     KeyImportSpec{Format: "pem", KeyData: pemKey.String()},
	}))
	assert.Equal(t, expectedPub.String(), armored.PublicKey, "armored import must resolve to the same key")

	data := []byte("term sheet rev 3")
	sig := decodeResult[SignatureResult](t, runOp(t, app, collector, "admin", interfaces.OpSign, SignParams{KeyName: "partner-key", Data: data}))
	assert.NotEmpty(t, sig.Signature, "signing must produce a signature")

	verdict := decodeResult[VerifyResult](t, runOp(t, app, collector, "anyone", interfaces.OpVerify, VerifyParams{KeyName: "partner-key", Data: data, Signature: sig.Signature}))
	assert.True(t, verdict.Valid, "signature must verify against the signed data")

	verdict = decodeResult[VerifyResult](t, runOp(t, app, collector, "anyone", interfaces.OpVerify, VerifyParams{KeyName: "partner-key", Data: []byte("altered"), Signature: sig.Signature}))
	assert.False(t, verdict.Valid, "signature must not verify against other data")
}

func TestApp_ExportStorageServerKey(t *testing.T) {
	app, collector, led, _ := newTestApp(t)
	ctx := context.Background()

	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)

	exported := decodeResult[ExportedKey](t, runOp(t, app, collector, "admin", interfaces.OpExportStorageServerPrivateKey, nil))
	assert.Equal(t, interfaces.FormatRaw, exported.Format, "format must default to raw")
	scalar, err := base64.StdEncoding.DecodeString(exported.Key)
	require.NoError(t, err, "raw export must be base64 text")
	assert.Len(t, scalar, 32, "P-256 scalar must be 32 bytes")

	pem := decodeResult[ExportedKey](t, runOp(t, app, collector, "admin", interfaces.OpExportStorageServerPrivateKey, ExportKeyParams{Format: "pem"}))
	assert.Contains(t, pem.Key, "BEGIN PRIVATE KEY", "pem export must carry armor")

	err = failOp(t, app, collector, "admin", interfaces.OpExportStorageServerPrivateKey, ExportKeyParams{Format: "der"})
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedFormat, "unknown format must be rejected")

	// A cleared record must fail the export without emitting anything.
	keys, err := LoadKeys(ctx, led)
	require.NoError(t, err, "loading keys must succeed")
	require.NoError(t, keys.ClearKeys(ctx), "clearing must succeed")

	err = failOp(t, app, collector, "admin", interfaces.OpExportStorageServerPrivateKey, nil)
	assert.ErrorIs(t, err, ErrNoStorageKey, "export without a storage key must fail")
}

func TestApp_ListDataRooms(t *testing.T) {
	app, collector, _, _ := newTestApp(t)

	runOp(t, app, collector, "admin", interfaces.OpCreateSuperAdmin, nil)

	empty := decodeResult[MessageResult](t, runOp(t, app, collector, "admin", interfaces.OpListDataRooms, nil))
	assert.Equal(t, "no data rooms", empty.Message, "no rooms must report the no rooms message")

	runOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "alpha"})
	runOp(t, app, collector, "admin", interfaces.OpCreateDataRoom, CreateDataRoomParams{DataRoomID: "beta"})

	adminList := decodeResult[DataRoomListResult](t, runOp(t, app, collector, "admin", interfaces.OpListDataRooms, nil))
	assert.ElementsMatch(t, []interfaces.RoomID{"alpha", "beta"}, adminList.IDs, "super admin must see all rooms")

	requestAndApprove(t, app, collector, "admin", "alice", "beta", interfaces.RoleViewer)

	aliceList := decodeResult[DataRoomListResult](t, runOp(t, app, collector, "alice", interfaces.OpListDataRooms, nil))
	assert.Equal(t, []interfaces.RoomID{"beta"}, aliceList.IDs, "users must see only rooms they hold a role on")
}

func TestApp_InvalidInputs(t *testing.T) {
	app, collector, _, _ := newTestApp(t)
	ctx := context.Background()

	err := app.Execute(ctx, "admin", interfaces.Operation("dropTables"), "dropTables-1", nil)
	assert.ErrorIs(t, err, interfaces.ErrUnknownOperation, "unknown operations must be rejected")

	err = app.Execute(ctx, "admin", interfaces.OpGetPublicKeys, "", nil)
	assert.ErrorIs(t, err, ErrInvalidPayload, "empty request id must be rejected")

	err = app.Execute(ctx, "", interfaces.OpGetPublicKeys, "getPublicKeys-1", nil)
	assert.ErrorIs(t, err, ErrInvalidPayload, "empty sender must be rejected")

	err = app.Execute(ctx, "alice", interfaces.OpCreateUserRequest, "createUserRequest-1", json.RawMessage("{not json"))
	assert.ErrorIs(t, err, ErrInvalidPayload, "malformed payloads must be rejected")

	err = failOp(t, app, collector, "alice", interfaces.OpCreateUserRequest, CreateUserParams{DataRoomID: "deal-1", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidPayload, "unknown roles must be rejected")
}
