// Package contract implements the data room application: the full named
// operation surface that in production executes inside the confidential
// ledger runtime, here bound to the platform seams (ledger, key store,
// notifier) through interfaces so it can also run against the development
// gateway and in tests.
//
// # Operations
//
// App.Execute dispatches one transaction to one of the named operations:
// bootstrap and identity management (createSuperAdmin, resetIdentities,
// setTokenIdentity), access requests (createUserRequest, listUserRequests,
// approveUserRequest, getUserContent), data rooms (createDataRoom,
// updateDataRoom, listDataRooms, getDataRoomContent, getFileUploadToken),
// and key handling (getPublicKeys, exportStorageServerPrivateKey,
// importKey, getPublicKey, sign, verify).
//
// Results are pushed through the notifier tagged with the transaction's
// request id. Failures are returned as typed errors (ErrNotAuthorized,
// ErrRequestNotFound, ErrRoomLocked, ...) and produce no emission.
//
// # Ledger Layout
//
// Collections persist their full listing as one JSON blob under the fixed
// "ALL" row key, with child records one row per id in the same table:
//
//   - userRequests: pending access requests
//   - dataRooms: room records with file entry listings
//   - keys: the two server key references (names only, never material)
//   - users: one row per approved user
//   - identities: singleton rows for the super admin and token identity
//
// The hosting runtime serializes transactions; the contract performs no
// locking of its own.
//
// # Key References
//
// The contract never touches raw private keys. It stores key store
// reference names and delegates all cryptography to the KeyStore seam. Note
// that ClearKeys and resetIdentities forget references without destroying
// the underlying store material; see Keys.ClearKeys for the implications.
//
// # Usage
//
//	collector := contract.NewCollector()
//	app := contract.NewApp(ledger, store, collector, logger)
//
//	err := app.Execute(ctx, sender, interfaces.OpCreateUserRequest, requestID, payload)
//	if err != nil {
//		// typed failure, nothing was emitted
//	}
//	results := collector.Take(requestID)
package contract
