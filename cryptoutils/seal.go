package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// SealToPublicKey encrypts data using ECIES with the given public key. It
// implements Elliptic Curve Integrated Encryption Scheme with ECDH key
// agreement, SHA-256 for key derivation, and AES-GCM for authenticated
// encryption. A fresh ephemeral key is generated for each operation,
// providing forward secrecy.
//
// Output format: [ephemeral key length (2 bytes)][ephemeral key][iv][ciphertext]
func SealToPublicKey(publicKey PublicKeyPEM, data []byte) ([]byte, error) {
	pub, err := publicKey.GetECDSAPublicKey()
	if err != nil {
		return nil, err
	}
	if IsSecp256k1(pub.Curve) {
		return nil, fmt.Errorf("%w: ECIES sealing", ErrUnsupportedEncoding)
	}

	recipient, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("unusable public key: %w", err)
	}

	// Generate ephemeral key for ECIES encryption
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	sharedSecret := sha256.Sum256(shared)

	iv := make([]byte, 12) // 12 bytes is standard for GCM
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	aesBlock, err := aes.NewCipher(sharedSecret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	ciphertext := aesGCM.Seal(nil, iv, data, nil)
	ephemeralPub := ephemeral.PublicKey().Bytes()

	result := make([]byte, 2+len(ephemeralPub)+len(iv)+len(ciphertext))
	binary.BigEndian.PutUint16(result[0:2], uint16(len(ephemeralPub)))
	copy(result[2:2+len(ephemeralPub)], ephemeralPub)
	copy(result[2+len(ephemeralPub):2+len(ephemeralPub)+len(iv)], iv)
	copy(result[2+len(ephemeralPub)+len(iv):], ciphertext)

	return result, nil
}

// OpenWithPrivateKey decrypts data sealed with SealToPublicKey using the
// corresponding private key. It parses the framing containing the ephemeral
// public key, IV, and ciphertext, then performs ECDH key agreement to derive
// the shared secret for decryption.
func OpenWithPrivateKey(privateKey PrivateKeyPEM, sealed []byte) ([]byte, error) {
	key, err := privateKey.GetECDSAPrivateKey()
	if err != nil {
		return nil, err
	}

	recipient, err := key.ECDH()
	if err != nil {
		return nil, fmt.Errorf("unusable private key: %w", err)
	}

	if len(sealed) < 2 {
		return nil, errors.New("sealed data too short")
	}

	ephemeralLen := int(binary.BigEndian.Uint16(sealed[0:2]))
	if len(sealed) < 2+ephemeralLen+12 { // 12 is GCM nonce size
		return nil, errors.New("sealed data has invalid format")
	}

	ephemeral, err := ecdh.P256().NewPublicKey(sealed[2 : 2+ephemeralLen])
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral public key: %w", err)
	}

	shared, err := recipient.ECDH(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	sharedSecret := sha256.Sum256(shared)

	ivStart := 2 + ephemeralLen
	iv := sealed[ivStart : ivStart+12]
	ciphertext := sealed[ivStart+12:]

	aesBlock, err := aes.NewCipher(sharedSecret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesGCM.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}
