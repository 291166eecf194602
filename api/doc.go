/*
Package api defines the HTTP surface shared by the client transport and the
development gateway: request metadata headers, the transaction response
envelope, and the gateway server configuration.

Operation inputs and results are not defined here; their shapes belong to
package contract, which both sides of the wire import. This package only
describes how a transaction crosses HTTP.

# Transaction envelope

The gateway exposes one route per operation, POST /api/v0/tx/{operation}.
Request metadata (application, request ID, sender identity) travels in
headers; the request body is the operation's JSON input, empty for
operations that take none. The response is a TxResponse carrying every
result payload the operation pushed for the request ID, in emission order.
Failures map to HTTP status codes with the error text as the plain-text
body.

# Uploads

Room file content is uploaded with PUT /api/v0/rooms/{roomID}/files. The
JSON-encoded upload token travels in UploadTokenHeader, the raw content in
the body; the gateway verifies the token and the content digest before any
bytes reach the file store.
*/
package api
