package interfaces

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// FileDigest is a 32-byte SHA-256 hash uniquely identifying room file
// content.
type FileDigest [32]byte

// NewFileDigestFromBytes creates a file digest from a 32-byte slice.
func NewFileDigestFromBytes(source []byte) (FileDigest, error) {
	if len(source) != 32 {
		return FileDigest{}, errors.New("invalid FileDigest conversion from bytes: incorrect length")
	}

	var hash [32]byte
	copy(hash[:], source)
	return FileDigest(hash), nil
}

// NewFileDigestFromHex creates a file digest from its hex representation.
func NewFileDigestFromHex(source string) (FileDigest, error) {
	// Remove 0x prefix if present
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return FileDigest{}, errors.New("invalid file digest length: hex string must be 64 characters")
	}

	// Decode hex string
	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return FileDigest{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var hash [32]byte
	copy(hash[:], hashBytes)
	return FileDigest(hash), nil
}

// ComputeFileDigest calculates the digest of file content.
func ComputeFileDigest(data []byte) FileDigest {
	hash := sha256.Sum256(data)
	return FileDigest(hash)
}

// String returns hex representation.
func (d FileDigest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns raw 32-byte hash.
func (d FileDigest) Bytes() []byte {
	return d[:]
}

// Equal compares two file digests.
func (d FileDigest) Equal(other FileDigest) bool {
	return bytes.Equal(d[:], other[:])
}

// ErrFileNotFound is returned when requested file content cannot be found in
// the file store.
var ErrFileNotFound = errors.New("file content not found")

// FileStore provides content-addressed storage for room file payloads.
type FileStore interface {
	// Put saves data and returns its digest.
	Put(ctx context.Context, data []byte) (FileDigest, error)

	// Get retrieves data by digest.
	Get(ctx context.Context, digest FileDigest) ([]byte, error)

	// Available checks if the store is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string
}
