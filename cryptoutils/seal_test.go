package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSealOpen tests the SealToPublicKey and OpenWithPrivateKey functions
func TestSealOpen(t *testing.T) {
	key, err := GenerateP256Key()
	require.NoError(t, err)

	privateKeyPEM, err := EncodePrivateKeyPEM(key)
	require.NoError(t, err)
	publicKeyPEM, err := PublicKeyToPEM(&key.PublicKey)
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{
			name: "Simple string",
			data: []byte("This is a secret message"),
		},
		{
			name: "JSON data",
			data: []byte(`{"algorithm":"ecdsa-p256","key":"c2VjcmV0"}`),
		},
		{
			name: "Binary data",
			data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD},
		},
		{
			name: "Long data",
			data: make([]byte, 1024), // 1KB of zeros
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := SealToPublicKey(publicKeyPEM, tc.data)
			require.NoError(t, err)

			// Sealed data should be longer than original
			require.Greater(t, len(sealed), len(tc.data))

			opened, err := OpenWithPrivateKey(privateKeyPEM, sealed)
			require.NoError(t, err)

			require.Equal(t, tc.data, opened)
		})
	}
}

// TestOpenWithWrongKey tests that opening fails with the wrong key
func TestOpenWithWrongKey(t *testing.T) {
	key1, err := GenerateP256Key()
	require.NoError(t, err)
	publicKeyPEM, err := PublicKeyToPEM(&key1.PublicKey)
	require.NoError(t, err)

	key2, err := GenerateP256Key()
	require.NoError(t, err)
	wrongKeyPEM, err := EncodePrivateKeyPEM(key2)
	require.NoError(t, err)

	sealed, err := SealToPublicKey(publicKeyPEM, []byte("Top secret data"))
	require.NoError(t, err)

	_, err = OpenWithPrivateKey(wrongKeyPEM, sealed)
	require.Error(t, err)
}

// TestSealInvalidInputs tests error handling for invalid keys and framing
func TestSealInvalidInputs(t *testing.T) {
	// Invalid public key
	_, err := SealToPublicKey(PublicKeyPEM("not a valid PEM"), []byte("test"))
	require.Error(t, err)

	// Invalid private key
	_, err = OpenWithPrivateKey(PrivateKeyPEM("not a valid PEM"), []byte("test"))
	require.Error(t, err)

	// secp256k1 recipients are not supported
	secpKey, err := GenerateSecp256k1Key()
	require.NoError(t, err)
	secpPub, err := PublicKeyToPEM(&secpKey.PublicKey)
	require.NoError(t, err)
	_, err = SealToPublicKey(secpPub, []byte("test"))
	require.ErrorIs(t, err, ErrUnsupportedEncoding)

	key, err := GenerateP256Key()
	require.NoError(t, err)
	privateKeyPEM, err := EncodePrivateKeyPEM(key)
	require.NoError(t, err)

	// Too short data
	_, err = OpenWithPrivateKey(privateKeyPEM, []byte{0x01})
	require.Error(t, err)

	// Garbage framing
	_, err = OpenWithPrivateKey(privateKeyPEM, make([]byte, 100))
	require.Error(t, err)
}
