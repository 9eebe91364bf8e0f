package certvault

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
)

// KeyAlgorithm is a closed tag over the public key families the vault
// understands. Produced once by the decoder and consumed everywhere else
// without further type inspection.
type KeyAlgorithm string

const (
	KeyRSA     KeyAlgorithm = "RSA"
	KeyECDSA   KeyAlgorithm = "ECDSA"
	KeyEd25519 KeyAlgorithm = "Ed25519"
	KeyOther   KeyAlgorithm = "Other"
)

// PublicKeyInfo describes a public key as a tagged variant: RSA carries a
// modulus bit length, ECDSA a curve name and its bit size, Ed25519 a fixed
// 256 bits, and Other carries neither.
type PublicKeyInfo struct {
	Algorithm KeyAlgorithm
	Bits      int
	Curve     string
}

// String renders the key info the way certificate viewers do, e.g.
// "RSA 2048 bits" or "ECDSA P-256".
func (i PublicKeyInfo) String() string {
	switch i.Algorithm {
	case KeyRSA:
		return fmt.Sprintf("RSA %d bits", i.Bits)
	case KeyECDSA:
		return fmt.Sprintf("ECDSA %s", i.Curve)
	case KeyEd25519:
		return "Ed25519"
	default:
		return string(KeyOther)
	}
}

// PublicKeyInfoOf builds the tagged variant for a public key.
func PublicKeyInfoOf(pub crypto.PublicKey) PublicKeyInfo {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return PublicKeyInfo{Algorithm: KeyRSA, Bits: k.N.BitLen()}
	case *ecdsa.PublicKey:
		return PublicKeyInfo{Algorithm: KeyECDSA, Bits: k.Curve.Params().BitSize, Curve: k.Curve.Params().Name}
	case ed25519.PublicKey:
		return PublicKeyInfo{Algorithm: KeyEd25519, Bits: 256}
	default:
		return PublicKeyInfo{Algorithm: KeyOther}
	}
}

// PrivateKeyInfo builds the tagged variant for a private key by extracting
// its public half.
func PrivateKeyInfo(priv crypto.PrivateKey) PublicKeyInfo {
	pub, err := GetPublicKey(priv)
	if err != nil {
		return PublicKeyInfo{Algorithm: KeyOther}
	}
	return PublicKeyInfoOf(pub)
}
