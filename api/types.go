package api

import (
	"encoding/json"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// Request metadata headers used by the development gateway.
const (
	// AppHeader carries the application identifier a transaction targets.
	AppHeader = "X-DataRoom-App"

	// RequestIDHeader carries the transaction request ID. The gateway
	// assigns one when the header is absent.
	RequestIDHeader = "X-DataRoom-Request-Id"

	// SenderHeader carries the caller identity. The production runtime
	// derives the sender from the connection; the development gateway
	// trusts this header.
	SenderHeader = "X-DataRoom-Sender"

	// UploadTokenHeader carries a JSON-encoded contract.UploadToken on file
	// upload requests.
	UploadTokenHeader = "X-DataRoom-Upload-Token"
)

// TxResponse is the gateway's response envelope for one executed
// transaction: every result payload the operation pushed for the request ID,
// in emission order.
type TxResponse struct {
	RequestID interfaces.RequestID `json:"requestId"`
	Results   []json.RawMessage    `json:"results"`
}

// UploadResponse reports where uploaded room file content landed.
type UploadResponse struct {
	// Digest is the hex SHA-256 digest the content is stored under.
	Digest string `json:"digest"`

	// Size is the accepted content length in bytes.
	Size int64 `json:"size"`
}
