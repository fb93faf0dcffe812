package security

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/xmldoc"
)

// EnvelopeSigner produces enveloped RSA-SHA256 signatures over whole
// documents
type EnvelopeSigner struct {
	pair *CertificateKeyPair
}

// NewEnvelopeSigner creates a signer for the given key pair
func NewEnvelopeSigner(pair *CertificateKeyPair) (*EnvelopeSigner, error) {
	if pair == nil {
		return nil, fmt.Errorf("certificate key pair is required")
	}
	return &EnvelopeSigner{pair: pair}, nil
}

// Sign signs a copy of doc and returns the serialized result. doc is not
// modified. On failure the error is a *SigningError and no document is
// returned.
func (s *EnvelopeSigner) Sign(doc *etree.Document) (*SignedDocument, error) {
	signed, sig, err := s.sign(doc)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	return &SignedDocument{Document: xmldoc.FromBytes(signed), Signature: sig}, nil
}

func (s *EnvelopeSigner) sign(doc *etree.Document) ([]byte, *Signature, error) {
	if doc == nil || doc.Root() == nil {
		return nil, nil, errors.New("no root element found")
	}

	work := xmldoc.Copy(doc)
	root := work.Root()

	uri := ""
	if id := root.SelectAttrValue(IDAttribute, ""); id != "" {
		uri = "#" + id
	}

	xmldoc.StripNamespacePrefixDeclarations(root)

	// The signature is not yet part of the tree, so digesting the root as
	// is gives the enveloped-signature transform result
	canonicalRoot, err := canonicalize(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}
	digest := sha256.Sum256(canonicalRoot)

	sig := etree.NewElement("Signature")
	sig.CreateAttr("xmlns", NSXMLDSig)

	signedInfo := sig.CreateElement("SignedInfo")
	c14nMethod := signedInfo.CreateElement("CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", AlgorithmC14N)
	sigMethod := signedInfo.CreateElement("SignatureMethod")
	sigMethod.CreateAttr("Algorithm", AlgorithmRSASHA256)

	ref := signedInfo.CreateElement("Reference")
	ref.CreateAttr("URI", uri)
	transforms := ref.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", AlgorithmEnveloped)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", AlgorithmC14N)
	digestMethod := ref.CreateElement("DigestMethod")
	digestMethod.CreateAttr("Algorithm", AlgorithmSHA256)
	ref.CreateElement("DigestValue").SetText(base64.StdEncoding.EncodeToString(digest[:]))

	canonicalSignedInfo, err := canonicalize(signedInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to canonicalize SignedInfo: %w", err)
	}
	hashed := sha256.Sum256(canonicalSignedInfo)

	signatureValue, err := s.pair.Signer().Sign(rand.Reader, hashed[:], crypto.SHA256)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(signatureValue))

	cert := s.pair.Certificate()
	x509Data := sig.CreateElement("KeyInfo").CreateElement("X509Data")
	x509Data.CreateElement("X509SubjectName").SetText(cert.Subject.String())
	x509Data.CreateElement("X509Certificate").SetText(base64.StdEncoding.EncodeToString(cert.Raw))

	root.AddChild(sig)

	out, err := xmldoc.Serialize(work)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize signed document: %w", err)
	}

	return out, &Signature{
		Element:         sig.Copy(),
		ReferenceURI:    uri,
		SignatureMethod: AlgorithmRSASHA256,
		DigestValue:     digest[:],
		SignatureValue:  signatureValue,
		Certificate:     cert,
	}, nil
}

// canonicalize returns the exclusive canonical form of el, resolving
// namespaces inherited from its ancestors
func canonicalize(el *etree.Element) ([]byte, error) {
	c14n := signedxml.ExclusiveCanonicalization{WithComments: false}
	out, err := c14n.ProcessElement(xmldoc.Detach(el), "")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
