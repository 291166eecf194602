package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-dataroom-backend/cryptoutils"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// App is the data room contract: the full named-operation surface executed
// against the ledger, key store and notification channel of the hosting
// runtime. One invocation handles one transaction; the runtime (or the
// development gateway standing in for it) serializes invocations, so App
// performs no locking of its own.
type App struct {
	ledger   interfaces.Ledger
	store    interfaces.KeyStore
	notifier interfaces.Notifier
	log      *slog.Logger
}

// NewApp creates the contract bound to its platform seams.
func NewApp(ledger interfaces.Ledger, store interfaces.KeyStore, notifier interfaces.Notifier, log *slog.Logger) *App {
	return &App{
		ledger:   ledger,
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// Execute runs one named operation for the given sender. Results are
// pushed through the notifier tagged with requestID; a returned error
// means the operation failed and nothing was emitted for it.
func (app *App) Execute(ctx context.Context, sender interfaces.UserID, op interfaces.Operation, requestID interfaces.RequestID, payload json.RawMessage) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if err := requestID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := sender.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	app.log.Debug("Executing contract operation", slog.String("op", op.String()), slog.String("requestId", requestID.String()), slog.String("sender", sender.String()))

	result, err := app.dispatch(ctx, sender, op, payload)
	if err != nil {
		app.log.Debug("Contract operation failed", slog.String("op", op.String()), slog.String("requestId", requestID.String()), "err", err)
		return err
	}
	if result == nil {
		return nil
	}

	if err := app.notifier.Notify(requestID, result); err != nil {
		return fmt.Errorf("could not push result for %s: %w", op, err)
	}
	return nil
}

func (app *App) dispatch(ctx context.Context, sender interfaces.UserID, op interfaces.Operation, payload json.RawMessage) (any, error) {
	switch op {
	case interfaces.OpCreateSuperAdmin:
		return app.createSuperAdmin(ctx, sender)
	case interfaces.OpCreateUserRequest:
		return app.createUserRequest(ctx, sender, payload)
	case interfaces.OpGetUserContent:
		return app.getUserContent(ctx, sender)
	case interfaces.OpListUserRequests:
		return app.listUserRequests(ctx, sender)
	case interfaces.OpApproveUserRequest:
		return app.approveUserRequest(ctx, sender, payload)
	case interfaces.OpResetIdentities:
		return app.resetIdentities(ctx, sender)
	case interfaces.OpExportStorageServerPrivateKey:
		return app.exportStorageServerPrivateKey(ctx, sender, payload)
	case interfaces.OpSetTokenIdentity:
		return app.setTokenIdentity(ctx, sender, payload)
	case interfaces.OpCreateDataRoom:
		return app.createDataRoom(ctx, sender, payload)
	case interfaces.OpUpdateDataRoom:
		return app.updateDataRoom(ctx, sender, payload)
	case interfaces.OpGetPublicKeys:
		return app.getPublicKeys(ctx)
	case interfaces.OpGetFileUploadToken:
		return app.getFileUploadToken(ctx, sender, payload)
	case interfaces.OpListDataRooms:
		return app.listDataRooms(ctx, sender)
	case interfaces.OpGetDataRoomContent:
		return app.getDataRoomContent(ctx, sender, payload)
	case interfaces.OpImportKey:
		return app.importKey(ctx, sender, payload)
	case interfaces.OpGetPublicKey:
		return app.getPublicKey(ctx, payload)
	case interfaces.OpSign:
		return app.sign(ctx, sender, payload)
	case interfaces.OpVerify:
		return app.verify(ctx, payload)
	default:
		return nil, fmt.Errorf("%w: %q", interfaces.ErrUnknownOperation, op.String())
	}
}

func decode[T any](payload json.RawMessage) (T, error) {
	var params T
	if len(payload) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(payload, &params); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return params, nil
}

func (app *App) requireSuperAdmin(ctx context.Context, sender interfaces.UserID) error {
	admin, err := NewIdentities(app.ledger).SuperAdmin(ctx)
	if err != nil {
		return err
	}
	if admin == "" || admin != sender {
		return fmt.Errorf("%w: super admin required", ErrNotAuthorized)
	}
	return nil
}

func (app *App) requireRole(ctx context.Context, sender interfaces.UserID, roomID interfaces.RoomID, min interfaces.Role) error {
	user, err := NewUsers(app.ledger).Get(ctx, sender)
	if errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("%w: no role on room %s", ErrNotAuthorized, roomID)
	} else if err != nil {
		return err
	}

	role, ok := user.RoleFor(roomID)
	if !ok || !role.AtLeast(min) {
		return fmt.Errorf("%w: %s role required on room %s", ErrNotAuthorized, min, roomID)
	}
	return nil
}

// createSuperAdmin bootstraps the application: the sender becomes the
// super admin, both server keys are generated and the storage server key
// becomes the initial token identity. Rejected once a super admin exists.
func (app *App) createSuperAdmin(ctx context.Context, sender interfaces.UserID) (any, error) {
	identities := NewIdentities(app.ledger)

	admin, err := identities.SuperAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin != "" {
		return nil, ErrSuperAdminExists
	}

	user := User{ID: sender, SuperAdmin: true, CreatedAt: time.Now().UTC()}
	if err := NewUsers(app.ledger).Save(ctx, user); err != nil {
		return nil, err
	}
	if err := identities.SetSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	keys, err := LoadKeys(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	if err := keys.GenerateKlaveServerKey(ctx, app.store); err != nil {
		return nil, err
	}
	if err := keys.GenerateStorageServerKey(ctx, app.store); err != nil {
		return nil, err
	}
	if err := identities.SetTokenIdentity(ctx, keys.StorageServerKey()); err != nil {
		return nil, err
	}

	app.log.Info("Super admin created", slog.String("userId", sender.String()))
	return user, nil
}

func (app *App) createUserRequest(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	params, err := decode[CreateUserParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.DataRoomID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := params.Role.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	requests, err := LoadUserRequests(ctx, app.ledger)
	if err != nil {
		return nil, err
	}

	req := NewUserRequest(sender, params.DataRoomID, params.Role)
	if err := requests.Add(ctx, req); err != nil {
		return nil, err
	}

	app.log.Debug("User request created", slog.String("requestId", req.ID.String()), slog.String("dataRoomId", params.DataRoomID.String()))
	return req, nil
}

func (app *App) getUserContent(ctx context.Context, sender interfaces.UserID) (any, error) {
	return NewUsers(app.ledger).Get(ctx, sender)
}

func (app *App) listUserRequests(ctx context.Context, sender interfaces.UserID) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	requests, err := LoadUserRequests(ctx, app.ledger)
	if err != nil {
		return nil, err
	}

	ids := requests.IDs()
	if len(ids) == 0 {
		return MessageResult{Message: "no user requests"}, nil
	}
	return UserRequestListResult{IDs: ids}, nil
}

// approveUserRequest converts a pending request into a role grant and
// removes the request from the collection.
func (app *App) approveUserRequest(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	params, err := decode[ApproveUserParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.RequestID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	requests, err := LoadUserRequests(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	req, err := requests.Get(ctx, params.RequestID)
	if err != nil {
		return nil, err
	}

	rooms, err := LoadDataRooms(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	if _, err := rooms.Get(ctx, req.DataRoomID); err != nil {
		return nil, err
	}

	user, err := NewUsers(app.ledger).Grant(ctx, req.Requester, req.DataRoomID, req.Role)
	if err != nil {
		return nil, err
	}
	if err := requests.Remove(ctx, req.ID); err != nil {
		return nil, err
	}

	app.log.Info("User request approved", slog.String("requestId", req.ID.String()), slog.String("userId", req.Requester.String()), slog.String("role", req.Role.String()))
	return user, nil
}

// resetIdentities forgets both server key references, generates fresh
// server keys and points the token identity at the new storage server key.
// Outstanding upload tokens stop verifying. The forgotten key material
// stays in the store under its old names; see Keys.ClearKeys.
func (app *App) resetIdentities(ctx context.Context, sender interfaces.UserID) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	keys, err := LoadKeys(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	if err := keys.ClearKeys(ctx); err != nil {
		return nil, err
	}
	if err := keys.GenerateKlaveServerKey(ctx, app.store); err != nil {
		return nil, err
	}
	if err := keys.GenerateStorageServerKey(ctx, app.store); err != nil {
		return nil, err
	}
	if err := NewIdentities(app.ledger).SetTokenIdentity(ctx, keys.StorageServerKey()); err != nil {
		return nil, err
	}

	app.log.Info("Server identities reset", slog.String("sender", sender.String()))
	return keys.PublicKeys(ctx, app.store)
}

func (app *App) exportStorageServerPrivateKey(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	params, err := decode[ExportKeyParams](payload)
	if err != nil {
		return nil, err
	}
	format, err := interfaces.NewExportFormat(params.Format)
	if err != nil {
		return nil, err
	}

	keys, err := LoadKeys(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	exported, err := keys.ExportStorageServerPrivateKey(ctx, app.store, format)
	if err != nil {
		return nil, err
	}

	app.log.Info("Storage server private key exported", slog.String("format", format.String()))
	return exported, nil
}

func (app *App) setTokenIdentity(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	params, err := decode[SetTokenIdentityParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.KeyName.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !app.store.Exists(ctx, params.KeyName) {
		return nil, fmt.Errorf("token identity %s: %w", params.KeyName, interfaces.ErrKeyNotFound)
	}

	if err := NewIdentities(app.ledger).SetTokenIdentity(ctx, params.KeyName); err != nil {
		return nil, err
	}

	app.log.Info("Token identity set", slog.String("keyName", params.KeyName.String()))
	return MessageResult{Message: "token identity set"}, nil
}

func (app *App) createDataRoom(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	params, err := decode[CreateDataRoomParams](payload)
	if err != nil {
		return nil, err
	}
	roomID := params.DataRoomID
	if roomID == "" {
		roomID = interfaces.RoomID(uuid.NewString())
	}
	if err := roomID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rooms, err := LoadDataRooms(ctx, app.ledger)
	if err != nil {
		return nil, err
	}

	room := DataRoom{
		ID:        roomID,
		State:     RoomOpen,
		CreatedBy: sender,
		CreatedAt: time.Now().UTC(),
	}
	if err := rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	app.log.Info("Data room created", slog.String("dataRoomId", roomID.String()))
	return room, nil
}

// updateDataRoom adds file entries and optionally locks the room. Adding
// requires the contributor role, locking the admin role. Entries are added
// before the lock takes effect, so one call can finalize a room.
func (app *App) updateDataRoom(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	params, err := decode[UpdateDataRoomParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.DataRoomID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(params.AddFiles) == 0 && !params.Lock {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidPayload)
	}

	if len(params.AddFiles) > 0 {
		if err := app.requireRole(ctx, sender, params.DataRoomID, interfaces.RoleContributor); err != nil {
			return nil, err
		}
	}
	if params.Lock {
		if err := app.requireRole(ctx, sender, params.DataRoomID, interfaces.RoleAdmin); err != nil {
			return nil, err
		}
	}

	rooms, err := LoadDataRooms(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	room, err := rooms.Get(ctx, params.DataRoomID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, file := range params.AddFiles {
		entry := FileEntry{
			Name:    file.Name,
			Digest:  file.Digest,
			Size:    file.Size,
			AddedBy: sender,
			AddedAt: now,
		}
		if err := room.AddFile(entry); err != nil {
			return nil, err
		}
	}
	if params.Lock {
		room.Lock()
	}

	if err := rooms.Update(ctx, room); err != nil {
		return nil, err
	}

	app.log.Debug("Data room updated", slog.String("dataRoomId", room.ID.String()), slog.Int("addedFiles", len(params.AddFiles)), slog.Bool("locked", params.Lock))
	return room, nil
}

func (app *App) getPublicKeys(ctx context.Context) (any, error) {
	keys, err := LoadKeys(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	if !keys.IsSet() {
		return MessageResult{Message: "no keys"}, nil
	}
	return keys.PublicKeys(ctx, app.store)
}

func (app *App) getFileUploadToken(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	params, err := decode[UploadTokenParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.DataRoomID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	digest, err := interfaces.NewFileDigestFromHex(params.Digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := app.requireRole(ctx, sender, params.DataRoomID, interfaces.RoleContributor); err != nil {
		return nil, err
	}

	rooms, err := LoadDataRooms(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	room, err := rooms.Get(ctx, params.DataRoomID)
	if err != nil {
		return nil, err
	}
	if room.Locked() {
		return nil, fmt.Errorf("%w: %s", ErrRoomLocked, room.ID)
	}

	issuer := NewTokenIssuer(app.store, NewIdentities(app.ledger))
	token, err := issuer.Mint(ctx, params.DataRoomID, digest)
	if err != nil {
		return nil, err
	}

	app.log.Debug("Upload token minted", slog.String("dataRoomId", params.DataRoomID.String()), slog.String("digest", params.Digest))
	return token, nil
}

func (app *App) listDataRooms(ctx context.Context, sender interfaces.UserID) (any, error) {
	user, err := NewUsers(app.ledger).Get(ctx, sender)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown user", ErrNotAuthorized)
	} else if err != nil {
		return nil, err
	}

	var ids []interfaces.RoomID
	if user.SuperAdmin {
		rooms, err := LoadDataRooms(ctx, app.ledger)
		if err != nil {
			return nil, err
		}
		ids = rooms.IDs()
	} else {
		for roomID := range user.Roles {
			ids = append(ids, roomID)
		}
		slices.Sort(ids)
	}

	if len(ids) == 0 {
		return MessageResult{Message: "no data rooms"}, nil
	}
	return DataRoomListResult{IDs: ids}, nil
}

func (app *App) getDataRoomContent(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	params, err := decode[RoomContentParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.DataRoomID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := app.requireRole(ctx, sender, params.DataRoomID, interfaces.RoleViewer); err != nil {
		return nil, err
	}

	rooms, err := LoadDataRooms(ctx, app.ledger)
	if err != nil {
		return nil, err
	}
	return rooms.Get(ctx, params.DataRoomID)
}

// importKey stores externally supplied key material under a reference
// name. PEM armor on the key data is stripped before the material reaches
// the key store.
func (app *App) importKey(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	params, err := decode[ImportKeyParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.KeyName.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	material, err := materialFromSpec(params.Key)
	if err != nil {
		return nil, err
	}
	if err := app.store.Import(ctx, params.KeyName, material); err != nil {
		return nil, err
	}

	pub, err := app.store.PublicKey(ctx, params.KeyName)
	if err != nil {
		return nil, err
	}

	app.log.Info("Key imported", slog.String("keyName", params.KeyName.String()))
	return PublicKeyResult{KeyName: params.KeyName, PublicKey: pub.String()}, nil
}

func materialFromSpec(spec KeyImportSpec) (interfaces.KeyMaterial, error) {
	format, err := interfaces.NewExportFormat(spec.Format)
	if err != nil {
		return interfaces.KeyMaterial{}, err
	}

	data, err := cryptoutils.StripPEMArmor(spec.KeyData)
	if err != nil {
		return interfaces.KeyMaterial{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	// Armor stripping leaves pem payloads as plain PKCS #8 DER.
	if format == interfaces.FormatPEM {
		format = interfaces.FormatPKCS8
	}

	var algorithm interfaces.KeyAlgorithm
	if spec.Algorithm != "" {
		algorithm, err = interfaces.NewKeyAlgorithm(spec.Algorithm)
		if err != nil {
			return interfaces.KeyMaterial{}, err
		}
	}

	usages := make([]interfaces.KeyUsage, 0, len(spec.Usages))
	for _, usage := range spec.Usages {
		switch interfaces.KeyUsage(usage) {
		case interfaces.UsageSign, interfaces.UsageVerify:
			usages = append(usages, interfaces.KeyUsage(usage))
		default:
			return interfaces.KeyMaterial{}, fmt.Errorf("%w: unknown key usage %q", ErrInvalidPayload, usage)
		}
	}

	return interfaces.KeyMaterial{
		Format:      format,
		Data:        data,
		Algorithm:   algorithm,
		Extractable: spec.Extractable,
		Usages:      usages,
	}, nil
}

func (app *App) getPublicKey(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[KeyParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.KeyName.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	pub, err := app.store.PublicKey(ctx, params.KeyName)
	if err != nil {
		return nil, err
	}
	return PublicKeyResult{KeyName: params.KeyName, PublicKey: pub.String()}, nil
}

func (app *App) sign(ctx context.Context, sender interfaces.UserID, payload json.RawMessage) (any, error) {
	if err := app.requireSuperAdmin(ctx, sender); err != nil {
		return nil, err
	}

	params, err := decode[SignParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.KeyName.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	signature, err := app.store.Sign(ctx, params.KeyName, params.Data)
	if err != nil {
		return nil, err
	}
	return SignatureResult{KeyName: params.KeyName, Signature: signature}, nil
}

func (app *App) verify(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[VerifyParams](payload)
	if err != nil {
		return nil, err
	}
	if err := params.KeyName.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	valid, err := app.store.Verify(ctx, params.KeyName, params.Data, params.Signature)
	if err != nil {
		return nil, err
	}
	return VerifyResult{Valid: valid}, nil
}
