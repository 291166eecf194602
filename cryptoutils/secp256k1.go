package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	oidPublicKeyECDSA      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// marshalSecp256k1PKIX encodes a secp256k1 public key as an SPKI structure
// with the secp256k1 named curve, which crypto/x509 refuses to produce.
func marshalSecp256k1PKIX(pub *ecdsa.PublicKey) ([]byte, error) {
	curveOID, err := asn1.Marshal(oidNamedCurveSecp256k1)
	if err != nil {
		return nil, err
	}

	point := ethcrypto.FromECDSAPub(pub)
	return asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: curveOID},
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	})
}

// parseSecp256k1PKIX decodes an SPKI structure carrying a secp256k1 public
// key.
func parseSecp256k1PKIX(der []byte) (*ecdsa.PublicKey, error) {
	var spki subjectPublicKeyInfo
	rest, err := asn1.Unmarshal(der, &spki)
	if err != nil {
		return nil, fmt.Errorf("invalid public key structure: %w", err)
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing data after public key structure")
	}

	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("unsupported public key algorithm %v", spki.Algorithm.Algorithm)
	}

	var curveOID asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curveOID); err != nil {
		return nil, fmt.Errorf("invalid curve parameters: %w", err)
	}
	if !curveOID.Equal(oidNamedCurveSecp256k1) {
		return nil, fmt.Errorf("unsupported named curve %v", curveOID)
	}

	return ethcrypto.UnmarshalPubkey(spki.PublicKey.Bytes)
}
