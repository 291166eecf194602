/*
Package client is the SDK for the data room contract: every remote
operation as a typed, synchronous method.

Each call runs one named transaction against the connection: wait for
readiness, tag the request with "<operation>-<uuid>", register the result
and error callbacks, send, and block until the transaction resolves. The
callback surface of the underlying connection never leaks to callers;
methods return plain (result, error) pairs, and remote failures come back
as the errors the contract produced (over the loopback transport the typed
errors themselves, over HTTP an *interfaces.RemoteError carrying the
operation and message).

Calls are one shot: no retry, no backoff, no deduplication. Cancelling the
context abandons the call client-side; a transaction already submitted is
not recalled, and whatever effects it has on the ledger stand.

# Method naming

Three methods are named after their intent rather than their wire
operation: CreateUser issues createUserRequest, ListUsers issues
listUserRequests, ApproveUser issues approveUserRequest. Everything else
matches its operation name.

# Usage

	conn := transport.NewLoopback(ledger, store, "admin", log)
	c := client.NewClient(conn, "data-room", log)

	admin, err := c.CreateSuperAdmin(ctx)
	if err != nil {
		return err
	}

	room, err := c.CreateDataRoom(ctx, "project-dd")
	if err != nil {
		return err
	}

	token, err := c.GetFileUploadToken(ctx, room.ID, interfaces.ComputeFileDigest(content))
	if err != nil {
		return err
	}

The same code runs against a remote gateway by swapping the connection for
a transport.HTTPConn.
*/
package client
