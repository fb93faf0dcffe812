package security

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/xmldoc"
)

// SelectKey returns the first certificate whose public key algorithm name
// is a case-insensitive prefix of the signature method's algorithm
// fragment, e.g. "RSA" for ".../xmldsig-more#rsa-sha256".
func SelectKey(signatureMethod string, certs []*x509.Certificate) (*x509.Certificate, error) {
	if len(certs) == 0 {
		return nil, &NoKeyFoundError{Method: signatureMethod, Reason: "no certificates present"}
	}

	fragment := signatureMethod[strings.Index(signatureMethod, "#")+1:]
	for _, cert := range certs {
		if cert == nil {
			continue
		}
		alg := cert.PublicKeyAlgorithm.String()
		if len(fragment) >= len(alg) && strings.EqualFold(fragment[:len(alg)], alg) {
			return cert, nil
		}
	}
	return nil, &NoKeyFoundError{Method: signatureMethod, Reason: "no certificate matches the algorithm"}
}

// Verify checks the enveloped signature that is a direct child of el. The
// key comes from the certificates embedded in the signature's KeyInfo.
func Verify(el *etree.Element) (*Signature, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: no element", ErrInvalidSignature)
	}

	sigEl := dsigChild(el, "Signature")
	if sigEl == nil {
		return nil, fmt.Errorf("%w: no enveloped signature on %s", ErrInvalidSignature, el.Tag)
	}
	signedInfo := dsigChild(sigEl, "SignedInfo")
	if signedInfo == nil {
		return nil, fmt.Errorf("%w: SignedInfo missing", ErrInvalidSignature)
	}

	if alg := algorithm(dsigChild(signedInfo, "CanonicalizationMethod")); alg != AlgorithmC14N {
		return nil, fmt.Errorf("%w: unsupported canonicalization %q", ErrInvalidSignature, alg)
	}
	method := algorithm(dsigChild(signedInfo, "SignatureMethod"))
	if method != AlgorithmRSASHA256 {
		return nil, fmt.Errorf("%w: unsupported signature method %q", ErrInvalidSignature, method)
	}

	var refs []*etree.Element
	for _, c := range signedInfo.ChildElements() {
		if c.Tag == "Reference" {
			refs = append(refs, c)
		}
	}
	if len(refs) != 1 {
		return nil, fmt.Errorf("%w: expected one Reference, found %d", ErrInvalidSignature, len(refs))
	}
	ref := refs[0]

	uri := ref.SelectAttrValue("URI", "")
	if uri != "" {
		if !strings.HasPrefix(uri, "#") || el.SelectAttrValue(IDAttribute, "") != uri[1:] {
			return nil, fmt.Errorf("%w: reference %q does not point at %s", ErrInvalidSignature, uri, el.Tag)
		}
	}
	if err := checkTransforms(ref); err != nil {
		return nil, err
	}
	if alg := algorithm(dsigChild(ref, "DigestMethod")); alg != AlgorithmSHA256 {
		return nil, fmt.Errorf("%w: unsupported digest method %q", ErrInvalidSignature, alg)
	}

	wantDigest, err := decodeBase64(dsigChild(ref, "DigestValue"))
	if err != nil {
		return nil, fmt.Errorf("%w: digest value: %v", ErrInvalidSignature, err)
	}
	signatureValue, err := decodeBase64(dsigChild(sigEl, "SignatureValue"))
	if err != nil {
		return nil, fmt.Errorf("%w: signature value: %v", ErrInvalidSignature, err)
	}

	certs, err := embeddedCertificates(sigEl)
	if err != nil {
		return nil, err
	}
	cert, err := SelectKey(method, certs)
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificate key is %T, not RSA", ErrInvalidSignature, cert.PublicKey)
	}

	// Enveloped-signature transform: digest el without its signature
	target := xmldoc.Detach(el)
	target.RemoveChildAt(sigEl.Index())
	canonical, err := canonicalize(target)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize %s: %w", el.Tag, err)
	}
	digest := sha256.Sum256(canonical)
	if !bytes.Equal(digest[:], wantDigest) {
		return nil, fmt.Errorf("%w: digest mismatch for reference %q", ErrInvalidSignature, uri)
	}

	canonicalSignedInfo, err := canonicalize(signedInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize SignedInfo: %w", err)
	}
	hashed := sha256.Sum256(canonicalSignedInfo)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], signatureValue); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &Signature{
		Element:         xmldoc.Detach(sigEl),
		ReferenceURI:    uri,
		SignatureMethod: method,
		DigestValue:     wantDigest,
		SignatureValue:  signatureValue,
		Certificate:     cert,
	}, nil
}

func checkTransforms(ref *etree.Element) error {
	transforms := dsigChild(ref, "Transforms")
	if transforms == nil {
		return fmt.Errorf("%w: enveloped-signature transform missing", ErrInvalidSignature)
	}
	enveloped := false
	for _, t := range transforms.ChildElements() {
		switch alg := algorithm(t); alg {
		case AlgorithmEnveloped:
			enveloped = true
		case AlgorithmC14N:
		default:
			return fmt.Errorf("%w: unsupported transform %q", ErrInvalidSignature, alg)
		}
	}
	if !enveloped {
		return fmt.Errorf("%w: enveloped-signature transform missing", ErrInvalidSignature)
	}
	return nil
}

func embeddedCertificates(sigEl *etree.Element) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	keyInfo := dsigChild(sigEl, "KeyInfo")
	if keyInfo == nil {
		return nil, nil
	}
	for _, data := range keyInfo.ChildElements() {
		if data.Tag != "X509Data" {
			continue
		}
		for _, c := range data.ChildElements() {
			if c.Tag != "X509Certificate" {
				continue
			}
			der, err := decodeBase64(c)
			if err != nil {
				return nil, fmt.Errorf("%w: embedded certificate: %v", ErrInvalidSignature, err)
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("%w: embedded certificate: %v", ErrInvalidSignature, err)
			}
			certs = append(certs, cert)
		}
	}
	return certs, nil
}

// dsigChild returns the first child element of parent with the given local
// name in the XML Signature namespace
func dsigChild(parent *etree.Element, tag string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, c := range parent.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == NSXMLDSig {
			return c
		}
	}
	return nil
}

func algorithm(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("Algorithm", "")
}

func decodeBase64(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("element missing")
	}
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(el.Text()), ""))
}
