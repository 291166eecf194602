/*
Package gateway implements the HTTP server fronting the data room
contract runtime.

It terminates the transport protocol the client SDK speaks: transaction
submission, attestation evidence, and room file uploads. The gateway
hosts the contract runtime in-process and serializes every operation
through it, so the ledger sees one writer at a time regardless of
concurrent HTTP traffic.

The package includes three request surfaces:

1. Transaction API - POST /api/v0/tx/{operation} runs one contract
operation and returns the result payloads pushed for the request

2. Attestation API - GET /api/v0/attestation serves a quote binding the
application identifier and the contract's current public keys

3. Upload API - PUT /api/v0/rooms/{roomID}/files stores file content
after verifying the upload token minted by the contract

# Transaction handling

The operation name rides in the URL, the sender identity and request ID
in headers, and the operation payload as the raw request body. Contract
errors map onto HTTP status codes (403 for authorization failures, 404
for missing records, 409 for conflicts, 423 for locked rooms, 400 for
malformed payloads) with the error text as the plain-text body. Clients
reconstruct typed errors from the status and body.

# Uploads

Upload tokens are minted by the getFileUploadToken operation and signed
with the contract's token identity key. The gateway verifies the
signature, expiry, and that the uploaded bytes hash to the digest the
token was minted for, then writes the content to the configured file
store. Content is addressed by digest; the ledger's room listings hold
the digests.

# Health and diagnostics

The server exposes /livez, /readyz, /drain and /undrain for load
balancer integration, optional pprof under /debug, and Prometheus
metrics on a separate listener.
*/
package gateway
