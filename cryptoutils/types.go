// Package cryptoutils provides the cryptographic primitives behind the key
// store: typed PEM key encodings, ECDSA operations over NIST P-256 and
// secp256k1, and ECIES sealing for key material at rest.
package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// PublicKeyPEM represents a public key in PEM format.
type PublicKeyPEM []byte

// NewPublicKeyPEM creates a new public key object from PEM-encoded data with
// validation.
func NewPublicKeyPEM(data []byte) (PublicKeyPEM, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return PublicKeyPEM{}, errors.New("invalid public key: not in PEM format or not a public key")
	}

	// Structure is checked on use; secp256k1 SPKI blocks are not parseable
	// by crypto/x509.
	return PublicKeyPEM(data), nil
}

// Validate checks if the public key is properly formed.
func (pub PublicKeyPEM) Validate() error {
	_, err := NewPublicKeyPEM(pub)
	return err
}

// String returns the PEM text.
func (pub PublicKeyPEM) String() string {
	return string(pub)
}

// GetECDSAPublicKey returns the parsed ECDSA public key. Both P-256 PKIX
// blocks and secp256k1 SPKI blocks are understood.
func (pub PublicKeyPEM) GetECDSAPublicKey() (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err == nil {
		key, ok := parsed.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an ECDSA public key: %T", parsed)
		}
		return key, nil
	}

	// crypto/x509 rejects the secp256k1 named curve
	return parseSecp256k1PKIX(block.Bytes)
}

// PrivateKeyPEM represents a private key in PEM format.
type PrivateKeyPEM []byte

// NewPrivateKeyPEM creates a new private key object from PEM-encoded data
// with validation.
func NewPrivateKeyPEM(data []byte) (PrivateKeyPEM, error) {
	block, _ := pem.Decode(data)
	if block == nil || (block.Type != "PRIVATE KEY" && block.Type != "EC PRIVATE KEY") {
		return PrivateKeyPEM{}, errors.New("invalid private key: not in PEM format or not a private key")
	}

	return PrivateKeyPEM(data), nil
}

// Validate checks if the private key is properly formed.
func (priv PrivateKeyPEM) Validate() error {
	_, err := NewPrivateKeyPEM(priv)
	return err
}

// String returns the PEM text.
func (priv PrivateKeyPEM) String() string {
	return string(priv)
}

// GetECDSAPrivateKey returns the parsed ECDSA private key.
func (priv PrivateKeyPEM) GetECDSAPrivateKey() (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return ParsePKCS8PrivateKey(block.Bytes)
}

// StripPEMArmor removes the PEM header, footer and line breaks from an
// armored key and returns the decoded DER bytes. Inputs without armor are
// decoded as plain base64.
func StripPEMArmor(data string) ([]byte, error) {
	var b64 strings.Builder
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		b64.WriteString(line)
	}

	der, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		return nil, fmt.Errorf("failed to decode key body: %w", err)
	}
	if len(der) == 0 {
		return nil, errors.New("empty key body")
	}
	return der, nil
}
