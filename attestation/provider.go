package attestation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	tdx_client "github.com/google/go-tdx-guest/client"
)

// Quote mechanism identifiers, also used as the type tag in attestation
// documents.
const (
	// TypeDCAP is an Intel TDX quote obtained through the local quoting
	// infrastructure.
	TypeDCAP Type = "qemu-tdx"

	// TypeDummy is a deterministic stand-in quote for development and tests.
	TypeDummy Type = "dummy"
)

// ErrUnsupportedType is returned for attestation types this package cannot
// produce or verify.
var ErrUnsupportedType = errors.New("unsupported attestation type")

// Type identifies the mechanism that produced a quote.
type Type string

// NewType creates an attestation type from its string form with validation.
func NewType(s string) (Type, error) {
	switch Type(s) {
	case TypeDCAP, TypeDummy:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, s)
	}
}

// String returns the attestation type as a string.
func (t Type) String() string {
	return string(t)
}

// Provider produces quotes binding 64 bytes of report data to the local
// execution environment.
type Provider interface {
	// Type returns the mechanism identifier carried in documents this
	// provider produces.
	Type() Type

	// Attest produces a raw quote over the report data.
	Attest(reportData [64]byte) ([]byte, error)
}

// NewProvider selects a quote provider by mechanism name. The remote
// variant ("remote") proxies quote generation to a quote provider service
// at remoteURL and produces DCAP quotes.
func NewProvider(kind string, remoteURL string) (Provider, error) {
	switch kind {
	case TypeDummy.String():
		return DummyProvider{}, nil
	case TypeDCAP.String():
		return DCAPProvider{}, nil
	case "remote":
		if remoteURL == "" {
			return nil, errors.New("remote attestation provider requires an address")
		}
		return &RemoteProvider{Address: remoteURL}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
}

// DCAPProvider produces TDX quotes through the local quoting
// infrastructure, preferring the configfs interface and falling back to the
// guest device.
type DCAPProvider struct{}

// Type returns the DCAP mechanism identifier.
func (DCAPProvider) Type() Type { return TypeDCAP }

// Attest produces a raw TDX quote over the report data.
func (DCAPProvider) Attest(reportData [64]byte) ([]byte, error) {
	qp := &tdx_client.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdx_client.OpenDevice()
	if err != nil {
		return nil, err
	}
	defer qd.Close()

	return tdx_client.GetRawQuote(qd, reportData)
}

// RemoteProvider fetches quotes from a quote provider service, for setups
// where the gateway itself has no direct access to the quoting device.
type RemoteProvider struct {
	Address string
}

// Type returns the DCAP mechanism identifier; the remote service produces
// DCAP quotes.
func (*RemoteProvider) Type() Type { return TypeDCAP }

// Attest requests a quote over the report data from the remote service.
func (p *RemoteProvider) Attest(reportData [64]byte) ([]byte, error) {
	url := fmt.Sprintf("%s/attest/%s", p.Address, hex.EncodeToString(reportData[:]))
	resp, err := http.DefaultClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}
	return rawQuote, nil
}

// DummyProvider produces deterministic fake quotes so the full bootstrap
// path can run outside a TEE.
type DummyProvider struct{}

// Type returns the dummy mechanism identifier.
func (DummyProvider) Type() Type { return TypeDummy }

// Attest produces a fake quote over the report data.
func (DummyProvider) Attest(reportData [64]byte) ([]byte, error) {
	return []byte(dummyQuoteFor(reportData)), nil
}

func dummyQuoteFor(reportData [64]byte) string {
	return fmt.Sprintf("dummy attestation over %s", hex.EncodeToString(reportData[:]))
}
