/*
Package transport implements the connection seam (interfaces.Conn) between
the client SDK and a contract runtime.

Two implementations are provided:

  - Loopback drives a contract runtime in-process with no wire in between.
    It backs tests and the CLI's local mode.
  - HTTPConn talks to the development gateway: transactions POST to
    /api/v0/tx/{operation}, and construction starts a background bootstrap
    handshake (health probe, attestation fetch, verification against the
    configured application) that WaitReady observes.

# Delivery semantics

Both transports deliver remote outcomes through the transaction callbacks
before Send returns: every result payload the operation pushed goes to the
OnResult callback, remote failures go to OnError. Send itself returns an
error only when submission fails (closed or unready connection, transport
failure) or when no error callback is registered to take a remote failure.
A transaction that completes without pushing any payload reports
interfaces.ErrNoResult.

Transactions on one connection are serialized; the contract sees a single
writer regardless of how many goroutines share the connection.
*/
package transport
