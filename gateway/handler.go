package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ruteri/tee-dataroom-backend/api"
	"github.com/ruteri/tee-dataroom-backend/attestation"
	"github.com/ruteri/tee-dataroom-backend/contract"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/ruteri/tee-dataroom-backend/metrics"
)

// Handler processes gateway requests: contract transactions, attestation
// evidence, and room file uploads.
//
// Transactions are serialized through a single mutex; the contract sees one
// writer at a time regardless of concurrent HTTP requests.
type Handler struct {
	app       interfaces.AppID
	contract  *contract.App
	collector *contract.Collector
	ledger    interfaces.Ledger
	store     interfaces.KeyStore
	files     interfaces.FileStore
	provider  attestation.Provider
	log       *slog.Logger

	// Metrics records counters when set. The server wires it in.
	Metrics *metrics.MetricsServer

	execMu sync.Mutex
}

// NewHandler creates a gateway handler hosting a contract runtime for app
// on the given ledger and key store.
func NewHandler(app interfaces.AppID, ledger interfaces.Ledger, store interfaces.KeyStore, files interfaces.FileStore, provider attestation.Provider, log *slog.Logger) *Handler {
	collector := contract.NewCollector()
	return &Handler{
		app:       app,
		contract:  contract.NewApp(ledger, store, collector, log),
		collector: collector,
		ledger:    ledger,
		store:     store,
		files:     files,
		provider:  provider,
		log:       log,
	}
}

// HandleTransaction runs one contract operation and responds with the
// result payloads it pushed for the request ID.
func (h *Handler) HandleTransaction(w http.ResponseWriter, r *http.Request) {
	op := interfaces.Operation(chi.URLParam(r, "operation"))

	if app := r.Header.Get(api.AppHeader); app != "" && interfaces.AppID(app) != h.app {
		http.Error(w, fmt.Sprintf("unknown application %s", app), http.StatusNotFound)
		return
	}

	sender := interfaces.UserID(r.Header.Get(api.SenderHeader))
	if sender == "" {
		http.Error(w, "missing sender identity", http.StatusBadRequest)
		return
	}

	requestID := interfaces.RequestID(r.Header.Get(api.RequestIDHeader))
	if requestID == "" {
		requestID = interfaces.RequestID(fmt.Sprintf("%s-%s", op, uuid.NewString()))
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read request body", http.StatusBadRequest)
		return
	}

	h.execMu.Lock()
	err = h.contract.Execute(r.Context(), sender, op, requestID, payload)
	results := h.collector.Take(requestID)
	h.execMu.Unlock()

	if h.Metrics != nil {
		h.Metrics.RecordTransaction(op, err)
	}
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordNotifications(len(results))
	}

	writeJSON(w, api.TxResponse{RequestID: requestID, Results: results})
}

// HandleAttestation serves the gateway's attestation evidence: a quote
// binding the application identifier and the contract's current public
// keys.
func (h *Handler) HandleAttestation(w http.ResponseWriter, r *http.Request) {
	var identity json.RawMessage
	keys, err := contract.LoadKeys(r.Context(), h.ledger)
	if err == nil && keys.IsSet() {
		if public, err := keys.PublicKeys(r.Context(), h.store); err == nil {
			identity, _ = json.Marshal(public)
		}
	}

	doc, err := attestation.NewDocument(h.provider, h.app, identity)
	if err != nil {
		h.log.Error("Could not produce attestation evidence", "err", err)
		http.Error(w, "attestation unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, doc)
}

// HandleUpload verifies the upload token and stores room file content in
// the file store. The content digest must match the token; the room must
// still exist and be open.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	roomID := interfaces.RoomID(chi.URLParam(r, "roomID"))

	tokenHeader := r.Header.Get(api.UploadTokenHeader)
	if tokenHeader == "" {
		http.Error(w, "missing upload token", http.StatusUnauthorized)
		return
	}
	var token contract.UploadToken
	if err := json.Unmarshal([]byte(tokenHeader), &token); err != nil {
		http.Error(w, "malformed upload token", http.StatusUnauthorized)
		return
	}
	if token.RoomID != roomID {
		http.Error(w, fmt.Sprintf("upload token is for room %s", token.RoomID), http.StatusUnauthorized)
		return
	}

	rooms, err := contract.LoadDataRooms(r.Context(), h.ledger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	room, err := rooms.Get(r.Context(), roomID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	if room.Locked() {
		http.Error(w, fmt.Sprintf("room %s is locked", roomID), http.StatusLocked)
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read upload body", http.StatusBadRequest)
		return
	}

	issuer := contract.NewTokenIssuer(h.store, contract.NewIdentities(h.ledger))
	if err := issuer.VerifyUpload(r.Context(), token, content); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	digest, err := h.files.Put(r.Context(), content)
	if err != nil {
		h.log.Error("Could not store uploaded content", "err", err, slog.String("dataRoomId", roomID.String()))
		http.Error(w, "could not store content", http.StatusInternalServerError)
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordUpload(len(content))
	}
	h.log.Info("Room file content stored",
		slog.String("dataRoomId", roomID.String()),
		slog.String("digest", digest.String()),
		slog.Int("size", len(content)))

	writeJSON(w, api.UploadResponse{Digest: digest.String(), Size: int64(len(content))})
}

// statusForError maps contract errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, contract.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, contract.ErrTokenInvalid),
		errors.Is(err, contract.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, contract.ErrUserNotFound),
		errors.Is(err, contract.ErrRequestNotFound),
		errors.Is(err, contract.ErrRoomNotFound),
		errors.Is(err, contract.ErrNoStorageKey),
		errors.Is(err, contract.ErrNoTokenIdentity),
		errors.Is(err, interfaces.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, contract.ErrSuperAdminExists),
		errors.Is(err, contract.ErrRoomExists),
		errors.Is(err, interfaces.ErrKeyExists):
		return http.StatusConflict
	case errors.Is(err, contract.ErrRoomLocked):
		return http.StatusLocked
	case errors.Is(err, contract.ErrInvalidPayload),
		errors.Is(err, contract.ErrDigestMismatch),
		errors.Is(err, interfaces.ErrUnknownOperation),
		errors.Is(err, interfaces.ErrUnsupportedFormat),
		errors.Is(err, interfaces.ErrUnsupportedAlgorithm):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
	}
}
