package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPrivateKey is returned when a private key cannot sign
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrKeyMismatch is returned when a key does not belong to a certificate
	ErrKeyMismatch = errors.New("private key does not match certificate")
)

// CertificateKeyPair is the signing certificate and its private key. It is
// read-only once constructed and shared by all signing operations.
type CertificateKeyPair struct {
	certificate *x509.Certificate
	key         crypto.Signer
	chain       []*x509.Certificate
}

// NewCertificateKeyPair pairs cert with key. The key must be an RSA key
// matching the certificate's public key. chain holds any intermediate
// certificates that came with the keystore entry.
func NewCertificateKeyPair(cert *x509.Certificate, key crypto.PrivateKey, chain ...*x509.Certificate) (*CertificateKeyPair, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is required")
	}
	if key == nil {
		return nil, fmt.Errorf("%w: private key is required", ErrInvalidPrivateKey)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not implement crypto.Signer", ErrInvalidPrivateKey, key)
	}
	pub, ok := signer.Public().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: only RSA keys are supported, got %T", ErrInvalidPrivateKey, signer.Public())
	}
	if !pub.Equal(cert.PublicKey) {
		return nil, ErrKeyMismatch
	}

	return &CertificateKeyPair{
		certificate: cert,
		key:         signer,
		chain:       append([]*x509.Certificate(nil), chain...),
	}, nil
}

// Certificate returns the signing certificate
func (p *CertificateKeyPair) Certificate() *x509.Certificate {
	return p.certificate
}

// Signer returns the private key
func (p *CertificateKeyPair) Signer() crypto.Signer {
	return p.key
}

// Chain returns the intermediate certificates, if any
func (p *CertificateKeyPair) Chain() []*x509.Certificate {
	return append([]*x509.Certificate(nil), p.chain...)
}
