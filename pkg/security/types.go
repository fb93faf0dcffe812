package security

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/xmldoc"
)

// Algorithm URIs for XML signatures
const (
	AlgorithmRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmC14N      = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// NSXMLDSig is the XML Signature namespace
const NSXMLDSig = "http://www.w3.org/2000/09/xmldsig#"

// IDAttribute is the attribute a root element can carry to be referenced
// as "#<Id>" instead of by the whole-document reference
const IDAttribute = "Id"

var (
	// ErrSigning is matched by every error returned from Sign
	ErrSigning = errors.New("signing failed")
	// ErrNoKeyFound is matched when no certificate fits a signature method
	ErrNoKeyFound = errors.New("no key found")
	// ErrInvalidSignature is returned when a signature does not verify
	ErrInvalidSignature = errors.New("invalid signature")
)

// SigningError wraps the cause of a failed signing operation
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSigning, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Is reports ErrSigning as a match
func (e *SigningError) Is(target error) bool { return target == ErrSigning }

// NoKeyFoundError is returned by SelectKey
type NoKeyFoundError struct {
	Method string
	Reason string
}

func (e *NoKeyFoundError) Error() string {
	return fmt.Sprintf("%s for signature method %q: %s", ErrNoKeyFound, e.Method, e.Reason)
}

// Is reports ErrNoKeyFound as a match
func (e *NoKeyFoundError) Is(target error) bool { return target == ErrNoKeyFound }

// Signature describes an enveloped signature, either one just produced by
// Sign or one checked by Verify.
type Signature struct {
	Element         *etree.Element // detached copy of the <Signature> element
	ReferenceURI    string
	SignatureMethod string
	DigestValue     []byte
	SignatureValue  []byte
	Certificate     *x509.Certificate
}

// SignedDocument is a signed XML document together with its signature. It
// belongs to the caller that requested the signature.
type SignedDocument struct {
	*xmldoc.Document
	Signature *Signature
}
