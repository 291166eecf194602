package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// uploadTokenTTL bounds how long a minted upload token stays usable.
const uploadTokenTTL = time.Hour

// UploadToken authorizes one file upload into a data room. The contract
// mints it for a specific content digest; the gateway's upload endpoint
// verifies it before accepting any bytes. Tokens are endorsed by the
// current token identity, so rotating identities invalidates outstanding
// tokens.
type UploadToken struct {
	RoomID    interfaces.RoomID `json:"roomId"`
	Digest    string            `json:"digest"`
	Expires   int64             `json:"expires"`
	Signature []byte            `json:"signature"`
}

// SigningBytes returns the canonical byte string the token signature
// covers.
func (t UploadToken) SigningBytes() []byte {
	return []byte(fmt.Sprintf("dataroom-upload|%s|%s|%d", t.RoomID, t.Digest, t.Expires))
}

// Expired reports whether the token is past its expiry at the given time.
func (t UploadToken) Expired(now time.Time) bool {
	return now.Unix() >= t.Expires
}

// TokenIssuer mints and verifies upload tokens with the key the token
// identity row points at.
type TokenIssuer struct {
	store      interfaces.KeyStore
	identities *Identities
}

// NewTokenIssuer creates an issuer bound to the key store and identity
// rows.
func NewTokenIssuer(store interfaces.KeyStore, identities *Identities) *TokenIssuer {
	return &TokenIssuer{
		store:      store,
		identities: identities,
	}
}

func (ti *TokenIssuer) signingKey(ctx context.Context) (interfaces.KeyName, error) {
	name, err := ti.identities.TokenIdentity(ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrNoTokenIdentity
	}
	return name, nil
}

// Mint issues a token for uploading content with the given digest into the
// room.
func (ti *TokenIssuer) Mint(ctx context.Context, roomID interfaces.RoomID, digest interfaces.FileDigest) (UploadToken, error) {
	name, err := ti.signingKey(ctx)
	if err != nil {
		return UploadToken{}, err
	}

	token := UploadToken{
		RoomID:  roomID,
		Digest:  digest.String(),
		Expires: time.Now().Add(uploadTokenTTL).Unix(),
	}

	signature, err := ti.store.Sign(ctx, name, token.SigningBytes())
	if err != nil {
		return UploadToken{}, fmt.Errorf("could not sign upload token: %w", err)
	}

	token.Signature = signature
	return token, nil
}

// Verify checks the token is well formed, unexpired and endorsed by the
// current token identity.
func (ti *TokenIssuer) Verify(ctx context.Context, token UploadToken) error {
	if _, err := interfaces.NewFileDigestFromHex(token.Digest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if token.Expired(time.Now()) {
		return ErrTokenExpired
	}

	name, err := ti.signingKey(ctx)
	if err != nil {
		return err
	}

	valid, err := ti.store.Verify(ctx, name, token.SigningBytes(), token.Signature)
	if err != nil {
		return fmt.Errorf("could not verify upload token: %w", err)
	}
	if !valid {
		return ErrTokenInvalid
	}
	return nil
}

// VerifyUpload checks the token and that content actually hashes to the
// digest the token was minted for.
func (ti *TokenIssuer) VerifyUpload(ctx context.Context, token UploadToken, content []byte) error {
	if err := ti.Verify(ctx, token); err != nil {
		return err
	}

	digest, err := interfaces.NewFileDigestFromHex(token.Digest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !interfaces.ComputeFileDigest(content).Equal(digest) {
		return ErrDigestMismatch
	}
	return nil
}
