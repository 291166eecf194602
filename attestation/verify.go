package attestation

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/verify"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// ErrReportDataMismatch is returned when a quote verifies but binds
// different report data than the verifier expects.
var ErrReportDataMismatch = errors.New("quote report data does not match expected identity")

// Document is the attestation evidence a gateway serves for connection
// bootstrap: a quote over the application identifier and the gateway's
// advertised identity payload.
type Document struct {
	AppID    interfaces.AppID `json:"appId"`
	Type     Type             `json:"type"`
	Identity json.RawMessage  `json:"identity,omitempty"`
	Quote    []byte           `json:"quote"`
}

// NewDocument produces attestation evidence for the application and
// identity payload using the supplied quote provider.
func NewDocument(provider Provider, app interfaces.AppID, identity json.RawMessage) (Document, error) {
	quote, err := provider.Attest(ReportDataFor(app, identity))
	if err != nil {
		return Document{}, fmt.Errorf("could not produce quote: %w", err)
	}

	return Document{
		AppID:    app,
		Type:     provider.Type(),
		Identity: identity,
		Quote:    quote,
	}, nil
}

// ReportDataFor packs the application identifier and identity payload into
// quote report data: sha256 of the application identifier in the first 32
// bytes, sha256 of the identity payload in the last 32.
func ReportDataFor(app interfaces.AppID, identity []byte) [64]byte {
	var reportData [64]byte
	appHash := sha256.Sum256([]byte(app))
	identityHash := sha256.Sum256(identity)
	copy(reportData[:32], appHash[:])
	copy(reportData[32:], identityHash[:])
	return reportData
}

// Verify checks the document's quote against the application identifier the
// verifier expects and the identity payload the document carries. For TDX
// quotes the returned map holds the measurement registers (MRTD, RTMRs,
// configuration measurements) keyed by register index.
//
// The expected report data is re-derived locally, never taken from the
// document, so a quote minted for a different application fails here.
func Verify(doc Document, expected interfaces.AppID) (map[int]string, error) {
	reportData := ReportDataFor(expected, doc.Identity)

	switch doc.Type {
	case TypeDummy:
		return nil, verifyDummyQuote(reportData, doc.Quote)
	case TypeDCAP:
		return verifyDCAPQuote(reportData, doc.Quote)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, doc.Type)
	}
}

func verifyDummyQuote(reportData [64]byte, quote []byte) error {
	if string(quote) != dummyQuoteFor(reportData) {
		return ErrReportDataMismatch
	}
	return nil
}

func verifyDCAPQuote(reportData [64]byte, quote []byte) (map[int]string, error) {
	protoQuote, err := tdx_abi.QuoteToProto(quote)
	if err != nil {
		return nil, fmt.Errorf("could not parse quote: %w", err)
	}

	v4Quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type: %T", protoQuote)
	}

	options := verify.DefaultOptions()
	if err := verify.TdxQuote(protoQuote, options); err != nil {
		return nil, fmt.Errorf("quote verification failed: %w", err)
	}

	if !bytes.Equal(v4Quote.TdQuoteBody.ReportData, reportData[:]) {
		return nil, fmt.Errorf("%w: got %x, expected %x", ErrReportDataMismatch, v4Quote.TdQuoteBody.ReportData, reportData[:])
	}

	return map[int]string{
		0: hex.EncodeToString(v4Quote.TdQuoteBody.MrTd),
		1: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[0]),
		2: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[1]),
		3: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[2]),
		4: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[3]),
		5: hex.EncodeToString(v4Quote.TdQuoteBody.MrConfigId),
		6: hex.EncodeToString(v4Quote.TdQuoteBody.MrOwner),
		7: hex.EncodeToString(v4Quote.TdQuoteBody.MrOwnerConfig),
	}, nil
}
