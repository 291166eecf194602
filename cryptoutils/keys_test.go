package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestP256KeyRoundTrips tests raw, PKCS #8 and PEM encodings of P-256 keys
func TestP256KeyRoundTrips(t *testing.T) {
	key, err := GenerateP256Key()
	require.NoError(t, err)

	raw := PrivateKeyRaw(key)
	require.Len(t, raw, 32)
	parsed, err := ParseP256PrivateKeyRaw(raw)
	require.NoError(t, err)
	require.Equal(t, 0, key.D.Cmp(parsed.D))
	require.Equal(t, 0, key.X.Cmp(parsed.X))

	der, err := MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	fromDER, err := ParsePKCS8PrivateKey(der)
	require.NoError(t, err)
	require.Equal(t, 0, key.D.Cmp(fromDER.D))

	privPEM, err := EncodePrivateKeyPEM(key)
	require.NoError(t, err)
	require.NoError(t, privPEM.Validate())
	fromPEM, err := privPEM.GetECDSAPrivateKey()
	require.NoError(t, err)
	require.Equal(t, 0, key.D.Cmp(fromPEM.D))

	pubPEM, err := PublicKeyToPEM(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pubPEM.Validate())
	pub, err := pubPEM.GetECDSAPublicKey()
	require.NoError(t, err)
	require.Equal(t, 0, key.X.Cmp(pub.X))
	require.Equal(t, 0, key.Y.Cmp(pub.Y))
}

// TestSecp256k1KeyRoundTrips tests the raw and PEM encodings of secp256k1
// keys, and that PKCS #8 is rejected for them
func TestSecp256k1KeyRoundTrips(t *testing.T) {
	key, err := GenerateSecp256k1Key()
	require.NoError(t, err)
	require.True(t, IsSecp256k1(key.Curve))

	raw := PrivateKeyRaw(key)
	require.Len(t, raw, 32)
	parsed, err := ParseSecp256k1PrivateKeyRaw(raw)
	require.NoError(t, err)
	require.Equal(t, 0, key.D.Cmp(parsed.D))

	pubPEM, err := PublicKeyToPEM(&key.PublicKey)
	require.NoError(t, err)
	pub, err := pubPEM.GetECDSAPublicKey()
	require.NoError(t, err)
	require.True(t, IsSecp256k1(pub.Curve))
	require.Equal(t, 0, key.X.Cmp(pub.X))
	require.Equal(t, 0, key.Y.Cmp(pub.Y))

	_, err = MarshalPKCS8PrivateKey(key)
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
	_, err = EncodePrivateKeyPEM(key)
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}

// TestParseP256PrivateKeyRawRejectsBadScalars tests scalar range checking
func TestParseP256PrivateKeyRawRejectsBadScalars(t *testing.T) {
	_, err := ParseP256PrivateKeyRaw([]byte{0x01, 0x02})
	require.Error(t, err)

	_, err = ParseP256PrivateKeyRaw(make([]byte, 32))
	require.Error(t, err)

	tooLarge := make([]byte, 32)
	for i := range tooLarge {
		tooLarge[i] = 0xFF
	}
	_, err = ParseP256PrivateKeyRaw(tooLarge)
	require.Error(t, err)
}

// TestSignVerifyDigest tests signing and verification on both curves
func TestSignVerifyDigest(t *testing.T) {
	testCases := []struct {
		name     string
		generate func() (*testKey, error)
	}{
		{name: "P-256", generate: newTestP256Key},
		{name: "secp256k1", generate: newTestSecp256k1Key},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := tc.generate()
			require.NoError(t, err)

			digest := sha256.Sum256([]byte("payload to sign"))
			sig, err := SignDigest(key.priv, digest[:])
			require.NoError(t, err)

			require.True(t, VerifyDigest(&key.priv.PublicKey, digest[:], sig))

			otherDigest := sha256.Sum256([]byte("some other payload"))
			require.False(t, VerifyDigest(&key.priv.PublicKey, otherDigest[:], sig))

			require.False(t, VerifyDigest(&key.other.PublicKey, digest[:], sig))

			_, err = SignDigest(key.priv, []byte("not a digest"))
			require.Error(t, err)
		})
	}
}

// TestSecp256k1SignatureForm tests that secp256k1 signatures carry the
// recovery byte
func TestSecp256k1SignatureForm(t *testing.T) {
	key, err := GenerateSecp256k1Key()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("recoverable"))
	sig, err := SignDigest(key, digest[:])
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// Verification must also accept the bare [R || S] form
	require.True(t, VerifyDigest(&key.PublicKey, digest[:], sig[:64]))
}

// TestStripPEMArmor tests armor removal and plain base64 fallback
func TestStripPEMArmor(t *testing.T) {
	key, err := GenerateP256Key()
	require.NoError(t, err)
	der, err := MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	privPEM, err := EncodePrivateKeyPEM(key)
	require.NoError(t, err)

	stripped, err := StripPEMArmor(privPEM.String())
	require.NoError(t, err)
	require.Equal(t, der, stripped)

	plain, err := StripPEMArmor("aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), plain)

	_, err = StripPEMArmor("not base64 at all!!")
	require.Error(t, err)

	_, err = StripPEMArmor("")
	require.Error(t, err)
}

type testKey struct {
	priv  *ecdsa.PrivateKey
	other *ecdsa.PrivateKey
}

func newTestP256Key() (*testKey, error) {
	priv, err := GenerateP256Key()
	if err != nil {
		return nil, err
	}
	other, err := GenerateP256Key()
	if err != nil {
		return nil, err
	}
	return &testKey{priv: priv, other: other}, nil
}

func newTestSecp256k1Key() (*testKey, error) {
	priv, err := GenerateSecp256k1Key()
	if err != nil {
		return nil, err
	}
	other, err := GenerateSecp256k1Key()
	if err != nil {
		return nil, err
	}
	return &testKey{priv: priv, other: other}, nil
}
