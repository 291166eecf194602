package attestation

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummyProvider_RoundTrip(t *testing.T) {
	app := interfaces.AppID("dataroom-app")
	identity := json.RawMessage(`{"klaveServerPublicKey":"pem"}`)

	doc, err := NewDocument(DummyProvider{}, app, identity)
	require.NoError(t, err)
	assert.Equal(t, app, doc.AppID)
	assert.Equal(t, TypeDummy, doc.Type)

	measurements, err := Verify(doc, app)
	require.NoError(t, err)
	assert.Nil(t, measurements, "dummy quotes carry no measurements")

	t.Run("wrong application", func(t *testing.T) {
		_, err := Verify(doc, interfaces.AppID("some-other-app"))
		assert.ErrorIs(t, err, ErrReportDataMismatch)
	})

	t.Run("tampered identity payload", func(t *testing.T) {
		tampered := doc
		tampered.Identity = json.RawMessage(`{"klaveServerPublicKey":"evil"}`)
		_, err := Verify(tampered, app)
		assert.ErrorIs(t, err, ErrReportDataMismatch)
	})
}

func TestVerify_UnsupportedType(t *testing.T) {
	doc := Document{AppID: "dataroom-app", Type: "azure-tdx", Quote: []byte("quote")}
	_, err := Verify(doc, "dataroom-app")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestVerify_MalformedDCAPQuote(t *testing.T) {
	doc := Document{AppID: "dataroom-app", Type: TypeDCAP, Quote: []byte("not a tdx quote")}
	_, err := Verify(doc, "dataroom-app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not parse quote")
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider("dummy", "")
	require.NoError(t, err)
	assert.Equal(t, TypeDummy, provider.Type())

	provider, err = NewProvider("qemu-tdx", "")
	require.NoError(t, err)
	assert.Equal(t, TypeDCAP, provider.Type())

	provider, err = NewProvider("remote", "http://127.0.0.1:9999")
	require.NoError(t, err)
	assert.Equal(t, TypeDCAP, provider.Type())

	_, err = NewProvider("remote", "")
	assert.Error(t, err, "remote provider requires an address")

	_, err = NewProvider("sgx-epid", "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNewType(t *testing.T) {
	typ, err := NewType("dummy")
	require.NoError(t, err)
	assert.Equal(t, TypeDummy, typ)

	_, err = NewType("azure-tdx")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRemoteProvider(t *testing.T) {
	reportData := ReportDataFor("dataroom-app", []byte("identity"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/attest/"))
		assert.Equal(t, hex.EncodeToString(reportData[:]), strings.TrimPrefix(r.URL.Path, "/attest/"))
		w.Write([]byte("raw quote bytes"))
	}))
	defer server.Close()

	provider := &RemoteProvider{Address: server.URL}
	quote, err := provider.Attest(reportData)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw quote bytes"), quote)

	t.Run("service failure", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quoting device unavailable", http.StatusInternalServerError)
		}))
		defer failing.Close()

		_, err := (&RemoteProvider{Address: failing.URL}).Attest(reportData)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quoting device unavailable")
	})
}

func TestReportDataFor(t *testing.T) {
	base := ReportDataFor("dataroom-app", []byte("identity"))
	assert.Equal(t, base, ReportDataFor("dataroom-app", []byte("identity")), "report data must be deterministic")
	assert.NotEqual(t, base, ReportDataFor("other-app", []byte("identity")))
	assert.NotEqual(t, base, ReportDataFor("dataroom-app", []byte("other identity")))
}
