package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/ruteri/tee-dataroom-backend/cryptoutils"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMasterKey(t *testing.T) []byte {
	t.Helper()
	masterKey := make([]byte, 32)
	_, err := rand.Read(masterKey)
	require.NoError(t, err, "Failed to generate test master key")
	return masterKey
}

func TestStore_NewKeyStore(t *testing.T) {
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err, "NewKeyStore should succeed with a 32-byte master key")
	assert.NotNil(t, store, "Store should not be nil")

	// Test with too short master key
	_, err = NewKeyStore(make([]byte, 16))
	assert.Error(t, err, "Should fail with master key < 32 bytes")
}

func TestStore_GenerateAndSign(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	testCases := []struct {
		name      interfaces.KeyName
		algorithm interfaces.KeyAlgorithm
	}{
		{name: "p256Key", algorithm: interfaces.AlgorithmECDSAP256},
		{name: "secpKey", algorithm: interfaces.AlgorithmSecp256k1},
	}

	for _, tc := range testCases {
		t.Run(tc.algorithm.String(), func(t *testing.T) {
			err := store.Generate(ctx, tc.name, tc.algorithm)
			require.NoError(t, err, "Generate should succeed")
			assert.True(t, store.Exists(ctx, tc.name), "Generated key should exist")

			pubPEM, err := store.PublicKey(ctx, tc.name)
			require.NoError(t, err, "PublicKey should succeed")
			_, err = pubPEM.GetECDSAPublicKey()
			require.NoError(t, err, "Public key PEM should parse")

			data := []byte("message to sign")
			sig, err := store.Sign(ctx, tc.name, data)
			require.NoError(t, err, "Sign should succeed")

			valid, err := store.Verify(ctx, tc.name, data, sig)
			require.NoError(t, err, "Verify should succeed")
			assert.True(t, valid, "Signature should verify")

			valid, err = store.Verify(ctx, tc.name, []byte("tampered"), sig)
			require.NoError(t, err, "Verify should succeed even for bad signatures")
			assert.False(t, valid, "Tampered data should not verify")
		})
	}

	// Secp256k1 signatures carry the recovery byte
	sig, err := store.Sign(ctx, "secpKey", []byte("message"))
	require.NoError(t, err)
	assert.Len(t, sig, 65, "secp256k1 signatures should be recoverable form")
}

func TestStore_GenerateDuplicate(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	require.NoError(t, store.Generate(ctx, "dup", interfaces.AlgorithmECDSAP256))
	err = store.Generate(ctx, "dup", interfaces.AlgorithmECDSAP256)
	assert.ErrorIs(t, err, interfaces.ErrKeyExists, "Second Generate under the same name should fail")
}

func TestStore_MissingKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	assert.False(t, store.Exists(ctx, "missing"), "Missing key should not exist")

	_, err = store.PublicKey(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	_, err = store.Sign(ctx, "missing", []byte("data"))
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	_, err = store.Export(ctx, "missing", interfaces.FormatRaw)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	err = store.Destroy(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestStore_ImportRestrictions(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	key, err := cryptoutils.GenerateP256Key()
	require.NoError(t, err)

	err = store.Import(ctx, "restricted", interfaces.KeyMaterial{
		Format:      interfaces.FormatRaw,
		Data:        cryptoutils.PrivateKeyRaw(key),
		Algorithm:   interfaces.AlgorithmECDSAP256,
		Extractable: false,
		Usages:      []interfaces.KeyUsage{interfaces.UsageVerify},
	})
	require.NoError(t, err, "Import should succeed")

	// Usage list forbids signing
	_, err = store.Sign(ctx, "restricted", []byte("data"))
	assert.ErrorIs(t, err, interfaces.ErrKeyUsageNotAllowed, "Sign should be rejected for verify-only key")

	// Verification against an externally produced signature still works
	data := []byte("signed elsewhere")
	digest := sha256.Sum256(data)
	sig, err := cryptoutils.SignDigest(key, digest[:])
	require.NoError(t, err)
	valid, err := store.Verify(ctx, "restricted", data, sig)
	require.NoError(t, err)
	assert.True(t, valid, "Imported key should verify external signatures")

	// Non-extractable keys cannot be exported
	_, err = store.Export(ctx, "restricted", interfaces.FormatRaw)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotExtractable)
}

func TestStore_ImportFormats(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	key, err := cryptoutils.GenerateP256Key()
	require.NoError(t, err)
	der, err := cryptoutils.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPEM, err := cryptoutils.EncodePrivateKeyPEM(key)
	require.NoError(t, err)

	err = store.Import(ctx, "fromDER", interfaces.KeyMaterial{Format: interfaces.FormatPKCS8, Data: der, Extractable: true})
	require.NoError(t, err, "PKCS #8 import should succeed")

	err = store.Import(ctx, "fromPEM", interfaces.KeyMaterial{Format: interfaces.FormatPEM, Data: []byte(keyPEM), Extractable: true})
	require.NoError(t, err, "PEM import should succeed")

	// Both slots hold the same key
	raw1, err := store.Export(ctx, "fromDER", interfaces.FormatRaw)
	require.NoError(t, err)
	raw2, err := store.Export(ctx, "fromPEM", interfaces.FormatRaw)
	require.NoError(t, err)
	assert.Equal(t, raw1, raw2, "Both imports should yield the same key")
	assert.Equal(t, cryptoutils.PrivateKeyRaw(key), raw1)

	// Algorithm mismatch is rejected
	err = store.Import(ctx, "mismatch", interfaces.KeyMaterial{
		Format:    interfaces.FormatPKCS8,
		Data:      der,
		Algorithm: interfaces.AlgorithmSecp256k1,
	})
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedAlgorithm, "Declared algorithm must match the material")

	// secp256k1 imports through the raw scalar encoding
	secpKey, err := cryptoutils.GenerateSecp256k1Key()
	require.NoError(t, err)
	err = store.Import(ctx, "secpImport", interfaces.KeyMaterial{
		Format:    interfaces.FormatRaw,
		Data:      cryptoutils.PrivateKeyRaw(secpKey),
		Algorithm: interfaces.AlgorithmSecp256k1,
	})
	require.NoError(t, err, "Raw secp256k1 import should succeed")
}

func TestStore_ExportFormats(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	require.NoError(t, store.Generate(ctx, "p256", interfaces.AlgorithmECDSAP256))
	require.NoError(t, store.Generate(ctx, "secp", interfaces.AlgorithmSecp256k1))

	// P-256 exports in all three encodings
	raw, err := store.Export(ctx, "p256", interfaces.FormatRaw)
	require.NoError(t, err)
	assert.Len(t, raw, 32, "Raw export should be the bare scalar")
	_, err = cryptoutils.ParseP256PrivateKeyRaw(raw)
	require.NoError(t, err, "Raw export should round-trip")

	der, err := store.Export(ctx, "p256", interfaces.FormatPKCS8)
	require.NoError(t, err)
	fromDER, err := cryptoutils.ParsePKCS8PrivateKey(der)
	require.NoError(t, err, "PKCS #8 export should round-trip")
	assert.Equal(t, raw, cryptoutils.PrivateKeyRaw(fromDER))

	pemBytes, err := store.Export(ctx, "p256", interfaces.FormatPEM)
	require.NoError(t, err)
	require.NoError(t, cryptoutils.PrivateKeyPEM(pemBytes).Validate(), "PEM export should be armored")

	// secp256k1 only exports the raw scalar
	_, err = store.Export(ctx, "secp", interfaces.FormatRaw)
	require.NoError(t, err, "Raw secp256k1 export should succeed")
	_, err = store.Export(ctx, "secp", interfaces.FormatPKCS8)
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedFormat, "secp256k1 PKCS #8 export should fail")
	_, err = store.Export(ctx, "secp", interfaces.FormatPEM)
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedFormat, "secp256k1 PEM export should fail")
}

func TestStore_Destroy(t *testing.T) {
	ctx := context.Background()
	store, err := NewKeyStore(testMasterKey(t))
	require.NoError(t, err)

	require.NoError(t, store.Generate(ctx, "victim", interfaces.AlgorithmECDSAP256))
	require.NoError(t, store.Destroy(ctx, "victim"))
	assert.False(t, store.Exists(ctx, "victim"), "Destroyed key should not exist")

	// Name can be reused with a fresh key
	require.NoError(t, store.Generate(ctx, "victim", interfaces.AlgorithmECDSAP256))
	assert.True(t, store.Exists(ctx, "victim"))
}

func TestStore_Derive(t *testing.T) {
	ctx := context.Background()
	masterKey := testMasterKey(t)

	store1, err := NewKeyStore(masterKey)
	require.NoError(t, err)
	store2, err := NewKeyStore(masterKey)
	require.NoError(t, err)

	require.NoError(t, store1.Derive(ctx, "stable", interfaces.AlgorithmECDSAP256))
	require.NoError(t, store2.Derive(ctx, "stable", interfaces.AlgorithmECDSAP256))

	pub1, err := store1.PublicKey(ctx, "stable")
	require.NoError(t, err)
	pub2, err := store2.PublicKey(ctx, "stable")
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2, "Same master key and name should derive the same key")

	// Different names derive different keys
	require.NoError(t, store1.Derive(ctx, "other", interfaces.AlgorithmSecp256k1))
	pub3, err := store1.PublicKey(ctx, "other")
	require.NoError(t, err)
	assert.NotEqual(t, pub1, pub3, "Different names should derive different keys")
}
