package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrUnsupportedEncoding is returned when a key cannot be represented in the
// requested encoding. crypto/x509 has no support for the secp256k1 named
// curve, so secp256k1 private keys only round-trip through the raw scalar
// encoding.
var ErrUnsupportedEncoding = errors.New("encoding not supported for this curve")

// GenerateP256Key generates a new ECDSA key over NIST P-256.
func GenerateP256Key() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// GenerateSecp256k1Key generates a new ECDSA key over secp256k1.
func GenerateSecp256k1Key() (*ecdsa.PrivateKey, error) {
	return ethcrypto.GenerateKey()
}

// IsSecp256k1 reports whether the curve is secp256k1.
func IsSecp256k1(curve elliptic.Curve) bool {
	return curve == ethcrypto.S256()
}

// PrivateKeyRaw returns the bare private scalar, big-endian, 32 bytes.
func PrivateKeyRaw(key *ecdsa.PrivateKey) []byte {
	if IsSecp256k1(key.Curve) {
		return ethcrypto.FromECDSA(key)
	}
	return key.D.FillBytes(make([]byte, 32))
}

// ParseP256PrivateKeyRaw reconstructs a P-256 private key from its bare
// scalar.
func ParseP256PrivateKeyRaw(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid P-256 private scalar length %d", len(raw))
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("P-256 private scalar out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}

// ParseSecp256k1PrivateKeyRaw reconstructs a secp256k1 private key from its
// bare scalar.
func ParseSecp256k1PrivateKeyRaw(raw []byte) (*ecdsa.PrivateKey, error) {
	return ethcrypto.ToECDSA(raw)
}

// MarshalPKCS8PrivateKey encodes the private key as PKCS #8 DER. secp256k1
// keys return ErrUnsupportedEncoding.
func MarshalPKCS8PrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	if IsSecp256k1(key.Curve) {
		return nil, fmt.Errorf("%w: secp256k1 PKCS #8", ErrUnsupportedEncoding)
	}
	return x509.MarshalPKCS8PrivateKey(key)
}

// ParsePKCS8PrivateKey parses a DER-encoded ECDSA private key, accepting
// both PKCS #8 and SEC 1 structures.
func ParsePKCS8PrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		// Try to parse it as an EC private key
		ecKey, ecErr := x509.ParseECPrivateKey(der)
		if ecErr != nil {
			return nil, fmt.Errorf("invalid private key structure: %w", err)
		}
		return ecKey, nil
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an ECDSA private key: %T", parsed)
	}
	return key, nil
}

// EncodePrivateKeyPEM encodes the private key as a PEM-armored PKCS #8
// structure.
func EncodePrivateKeyPEM(key *ecdsa.PrivateKey) (PrivateKeyPEM, error) {
	der, err := MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return PrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// PublicKeyToPEM encodes the public key as PEM. P-256 keys use the standard
// PKIX encoding; secp256k1 keys use an SPKI structure with the secp256k1
// named curve.
func PublicKeyToPEM(pub *ecdsa.PublicKey) (PublicKeyPEM, error) {
	var der []byte
	var err error
	if IsSecp256k1(pub.Curve) {
		der, err = marshalSecp256k1PKIX(pub)
	} else {
		der, err = x509.MarshalPKIXPublicKey(pub)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	return PublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// SignDigest signs a 32-byte digest. P-256 signatures are ASN.1 DER;
// secp256k1 signatures are the 65-byte recoverable [R || S || V] form.
func SignDigest(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("invalid digest length %d", len(digest))
	}
	if IsSecp256k1(key.Curve) {
		return ethcrypto.Sign(digest, key)
	}
	return ecdsa.SignASN1(rand.Reader, key, digest)
}

// VerifyDigest checks a signature produced by SignDigest over the digest.
func VerifyDigest(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	if len(digest) != 32 {
		return false
	}
	if IsSecp256k1(pub.Curve) {
		if len(sig) < 64 {
			return false
		}
		return ethcrypto.VerifySignature(ethcrypto.FromECDSAPub(pub), digest, sig[:64])
	}
	return ecdsa.VerifyASN1(pub, digest, sig)
}
