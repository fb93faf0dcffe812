package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/config"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
)

func newCertificate(t *testing.T, cn string, pub, priv any) *x509.Certificate {
	t.Helper()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Sundsvalls kommun"},
			CommonName:   cn,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func newRSA(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, newCertificate(t, "digital-mail-sender", &key.PublicKey, key)
}

func certPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func TestLoad_PKCS12(t *testing.T) {
	key, cert := newRSA(t)
	_, ca := newRSA(t)

	blob, err := pkcs12.Modern.Encode(key, cert, []*x509.Certificate{ca}, "changeit")
	require.NoError(t, err)

	pair, err := Load(blob, "changeit", "sender")
	require.NoError(t, err)
	assert.True(t, pair.Certificate().Equal(cert))
	assert.True(t, key.PublicKey.Equal(pair.Signer().Public()))
	require.Len(t, pair.Chain(), 1)
	assert.True(t, pair.Chain()[0].Equal(ca))

	_, err = Load(blob, "wrong", "sender")
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestLoad_PEM(t *testing.T) {
	key, cert := newRSA(t)
	_, other := newRSA(t)

	t.Run("PKCS#1", func(t *testing.T) {
		blob := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		blob = append(blob, certPEM(cert)...)

		pair, err := Load(blob, "", "sender")
		require.NoError(t, err)
		assert.True(t, pair.Certificate().Equal(cert))
		assert.Empty(t, pair.Chain())
	})

	t.Run("PKCS#8 with chain before leaf", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		blob := certPEM(other)
		blob = append(blob, certPEM(cert)...)
		blob = append(blob, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})...)

		pair, err := Load(blob, "", "sender")
		require.NoError(t, err)
		assert.True(t, pair.Certificate().Equal(cert))
		require.Len(t, pair.Chain(), 1)
		assert.True(t, pair.Chain()[0].Equal(other))
	})

	t.Run("key of another certificate", func(t *testing.T) {
		blob := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		blob = append(blob, certPEM(other)...)

		_, err := Load(blob, "", "sender")
		assert.ErrorIs(t, err, security.ErrKeyMismatch)
	})
}

func TestLoad_Errors(t *testing.T) {
	key, cert := newRSA(t)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	_, err := Load(nil, "", "")
	assert.ErrorIs(t, err, ErrNoKeystore)

	_, err = Load(keyPEM, "", "")
	assert.ErrorIs(t, err, ErrCertificateNotFound)

	_, err = Load(certPEM(cert), "", "")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = Load([]byte("not a keystore"), "", "")
	assert.Error(t, err)

	unsupported := pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: []byte{1, 2, 3}})
	_, err = Load(append(unsupported, certPEM(cert)...), "", "")
	assert.ErrorContains(t, err, "unsupported key type")
}

func TestLoad_RejectsECKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cert := newCertificate(t, "ec", &key.PublicKey, key)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	blob := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	blob = append(blob, certPEM(cert)...)

	_, err = Load(blob, "", "ec")
	assert.ErrorIs(t, err, security.ErrInvalidPrivateKey)
}

func TestLoadFromConfig(t *testing.T) {
	key, cert := newRSA(t)
	blob, err := pkcs12.Modern.Encode(key, cert, nil, "changeit")
	require.NoError(t, err)

	t.Run("data", func(t *testing.T) {
		pair, err := LoadFromConfig(config.KeystoreConfig{
			Data:     base64.StdEncoding.EncodeToString(blob),
			Password: "changeit",
			Alias:    "sender",
		})
		require.NoError(t, err)
		assert.True(t, pair.Certificate().Equal(cert))
	})

	t.Run("path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sender.p12")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		pair, err := LoadFromConfig(config.KeystoreConfig{Path: path, Password: "changeit"})
		require.NoError(t, err)
		assert.True(t, pair.Certificate().Equal(cert))
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := LoadFromConfig(config.KeystoreConfig{Data: "%%%"})
		assert.ErrorContains(t, err, "decoding keystore data")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromConfig(config.KeystoreConfig{Path: filepath.Join(t.TempDir(), "none.p12")})
		assert.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := LoadFromConfig(config.KeystoreConfig{})
		assert.ErrorIs(t, err, ErrNoKeystore)
	})

	t.Run("wrong password names the alias", func(t *testing.T) {
		_, err := LoadFromConfig(config.KeystoreConfig{
			Data:     base64.StdEncoding.EncodeToString(blob),
			Password: "wrong",
			Alias:    "sender",
		})
		assert.ErrorIs(t, err, ErrIncorrectPassword)
		assert.ErrorContains(t, err, `"sender"`)
	})
}

func TestDescribe(t *testing.T) {
	key, cert := newRSA(t)
	pair, err := security.NewCertificateKeyPair(cert, key)
	require.NoError(t, err)

	info := Describe(pair, "sender")
	assert.Equal(t, "sender", info.Alias)
	assert.Equal(t, "RSA", info.Algorithm)
	assert.Equal(t, 2048, info.KeySize)
	assert.Contains(t, info.CertificateSubject, "CN=digital-mail-sender")
	assert.False(t, info.Expired(time.Now()))
	assert.True(t, info.Expired(time.Now().Add(48*time.Hour)))
}
