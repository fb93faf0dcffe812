// Package keystore loads the sender's signing certificate and private key.
//
// A keystore is an opaque blob plus a password and an alias. Two formats
// are accepted:
//
//   - PKCS#12 (.p12/.pfx), the format issued by the certificate vendors
//   - PEM with a private key block and one or more CERTIFICATE blocks
//     (development and tests)
//
// The result is a *security.CertificateKeyPair, immutable and shared by
// every signing operation of the process.
package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
)

// Common errors
var (
	ErrKeyNotFound         = errors.New("signing key not found")
	ErrCertificateNotFound = errors.New("signing certificate not found")
	ErrIncorrectPassword   = errors.New("keystore password incorrect")
	ErrNoKeystore          = errors.New("no keystore configured")
)

// KeyInfo describes a loaded signing key
type KeyInfo struct {
	// Alias is the configured keystore entry name
	Alias string

	// Algorithm is the key algorithm (e.g., "RSA", "EC")
	Algorithm string

	// KeySize is the key size in bits (e.g., 2048 for RSA)
	KeySize int

	NotBefore time.Time
	NotAfter  time.Time

	// CertificateSubject is the subject DN of the certificate
	CertificateSubject string
}

// Expired reports whether the certificate is outside its validity period
// at now
func (k KeyInfo) Expired(now time.Time) bool {
	return now.Before(k.NotBefore) || now.After(k.NotAfter)
}

// Describe returns the metadata of a loaded key pair
func Describe(pair *security.CertificateKeyPair, alias string) KeyInfo {
	cert := pair.Certificate()
	return KeyInfo{
		Alias:              alias,
		Algorithm:          keyAlgorithmName(cert.PublicKey),
		KeySize:            keySize(cert.PublicKey),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		CertificateSubject: cert.Subject.String(),
	}
}

func keyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	default:
		return "Unknown"
	}
}

func keySize(pub crypto.PublicKey) int {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case *rsa.PublicKey:
		return k.N.BitLen()
	default:
		return 0
	}
}
