// Package ledger provides row-addressed key/value tables with pluggable
// backends.
//
// The ledger package offers a unified interface for the contract's
// persistent state. Every backend exposes named tables of rows:
//
//   - In-memory tables for tests and single-process development
//   - File system tables for local development
//   - Badger for embedded single-node persistence
//   - HashiCorp Vault (KV v2) for secret-grade rows
//   - S3-compatible object storage for cloud deployments
//
// # Ledger URI Format
//
// Ledger backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://
//   - file:///var/lib/dataroom/ledger/
//   - badger:///var/lib/dataroom/badger/
//   - vault://vault.example.com:8200/secret/dataroom
//   - s3://bucket-name/prefix/?region=us-west-2
//
// # Tables and Rows
//
// A table is a flat namespace of rows addressed by string keys. Collection
// tables keep their full listing under the fixed row key "ALL" next to the
// per-entry rows, so a reader never needs a table scan. Row values are
// opaque bytes; the contract stores JSON documents, the key store sealed
// ciphertext.
//
// # Vault Storage
//
// The VaultLedger stores rows in the KV v2 secret engine using the path
// format {mount}/data/{path}/{table}/{row}. Row values are base64-wrapped
// so binary values survive Vault's JSON encoding. Authentication uses a
// token from the URI userinfo, the token query parameter, or the
// VAULT_TOKEN environment variable.
//
// # Mirrored Ledgers
//
// A mirror ledger aggregates several backends: writes go to every
// available backend and reads return the first hit. It provides redundancy
// for development deployments, not consistency; backends that miss writes
// while unavailable are not backfilled.
//
// # Usage Example
//
//	factory := ledger.NewLedgerFactory(logger)
//
//	location, err := interfaces.NewStoreLocation("badger:///var/lib/dataroom/")
//	if err != nil {
//	    log.Fatalf("Invalid ledger location: %v", err)
//	}
//
//	backend, err := factory.LedgerFor(location)
//	if err != nil {
//	    log.Fatalf("Failed to create ledger: %v", err)
//	}
//
//	users := backend.Table("users")
//	err = users.Set(ctx, "ALL", listing)
package ledger
