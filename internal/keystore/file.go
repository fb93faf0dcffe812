package keystore

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/config"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
)

var pemPrefix = []byte("-----BEGIN ")

// Load reads a key pair from a PKCS#12 or PEM blob. The alias names the
// entry for logs and metadata; a PKCS#12 blob holds a single key entry.
func Load(blob []byte, password, alias string) (*security.CertificateKeyPair, error) {
	if len(blob) == 0 {
		return nil, ErrNoKeystore
	}
	if bytes.Contains(blob, pemPrefix) {
		return loadPEM(blob)
	}
	return loadPKCS12(blob, password)
}

// LoadFromConfig loads the key pair configured in cfg, either from the
// base64 encoded Data or from the file at Path
func LoadFromConfig(cfg config.KeystoreConfig) (*security.CertificateKeyPair, error) {
	var (
		blob []byte
		err  error
	)
	switch {
	case cfg.Data != "":
		blob, err = base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding keystore data: %w", err)
		}
	case cfg.Path != "":
		blob, err = os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("reading keystore file: %w", err)
		}
	default:
		return nil, ErrNoKeystore
	}

	pair, err := Load(blob, cfg.Password, cfg.Alias)
	if err != nil {
		return nil, fmt.Errorf("loading keystore %q: %w", cfg.Alias, err)
	}
	return pair, nil
}

func loadPKCS12(blob []byte, password string) (*security.CertificateKeyPair, error) {
	key, cert, caCerts, err := pkcs12.DecodeChain(blob, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, ErrIncorrectPassword
		}
		return nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	return security.NewCertificateKeyPair(cert, key, caCerts...)
}

func loadPEM(data []byte) (*security.CertificateKeyPair, error) {
	var (
		key   crypto.Signer
		certs []*x509.Certificate
	)

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing certificate: %w", err)
			}
			certs = append(certs, cert)
			continue
		}

		if key != nil {
			continue
		}
		signer, err := parsePrivateKey(block)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		key = signer
	}

	if key == nil {
		return nil, ErrKeyNotFound
	}
	if len(certs) == 0 {
		return nil, ErrCertificateNotFound
	}

	// The leaf is the certificate of the key; the rest is chain
	leaf := 0
	type publicKey interface {
		Equal(crypto.PublicKey) bool
	}
	if pub, ok := key.Public().(publicKey); ok {
		for i, cert := range certs {
			if pub.Equal(cert.PublicKey) {
				leaf = i
				break
			}
		}
	}
	chain := make([]*x509.Certificate, 0, len(certs)-1)
	for i, cert := range certs {
		if i != leaf {
			chain = append(chain, cert)
		}
	}

	return security.NewCertificateKeyPair(certs[leaf], key, chain...)
}

func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key is not a signer")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}
