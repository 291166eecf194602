// Package interfaces defines core interfaces and types for the data room
// system, separating interface definitions from implementations.
//
// The package provides interfaces for the key components of the system:
//
// # Platform Interfaces
//
// Ledger: Row-addressed key/value persistence organized into named tables.
// The contract stores all of its collections through this interface; backends
// (in-memory, file, Badger, Vault, S3, mirrored) live in the ledger package.
//
// KeyStore: The named-key cryptographic subsystem. Keys are addressed by
// key-store reference names and never leave the store except through an
// explicit export. Supports ECDSA P-256 and secp256k1.
//
// Notifier: The channel through which contract operations push structured
// results back to the caller, tagged with the ambient request ID.
//
// FileStore: Content-addressed storage for data room file payloads, addressed
// by SHA-256 digest.
//
// # Transport Interfaces
//
// Conn: An established session with a contract runtime. Readiness is
// event-driven: WaitReady blocks on connection state changes rather than
// polling a flag.
//
// Tx: A single named transaction prepared on a connection, with result and
// error callbacks and a one-shot Send.
//
// # Core Types
//
// The package also defines the identifier and descriptor types shared across
// components:
//
// - RoomID, UserID, UserRequestID: entity identifiers
// - RequestID: per-transaction tag carried through the notification channel
// - KeyName: key-store reference, as opposed to raw key material
// - FileDigest: 32-byte SHA-256 hash addressing room file content
// - KeyAlgorithm, ExportFormat, KeyMaterial: key-store descriptors
// - StoreLocation: parsed backend URI for ledger and file storage
// - Operation: the named remote procedure surface of the contract
package interfaces
