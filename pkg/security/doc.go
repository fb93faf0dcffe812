// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security signs and verifies the enveloped XML signatures carried by
secure deliveries.

# Signing

An EnvelopeSigner holds a CertificateKeyPair loaded once at startup and is
safe for concurrent use:

	pair, err := security.NewCertificateKeyPair(cert, key)
	signer, err := security.NewEnvelopeSigner(pair)
	signed, err := signer.Sign(doc)

Sign never modifies its input. It works on a copy of the tree and:
  - references the root as "#<Id>" when the root carries a non-empty Id
    attribute, otherwise as the whole document ("")
  - strips namespace prefix declarations
  - digests the root with the enveloped-signature and exclusive C14N
    transforms using SHA-256
  - signs the exclusive canonical SignedInfo with RSA-SHA256
  - embeds the certificate and its subject name in KeyInfo/X509Data
  - appends the Signature element as the last child of the root

Only RSA-SHA256, SHA-256 digests and exclusive canonicalization are
supported.

# Verification

Verify checks the signature that is a direct child of an element, using
the key SelectKey picks from the embedded certificates:

	sig, err := security.Verify(doc.Root())

# References

  - XML Signature: https://www.w3.org/TR/xmldsig-core1/
  - Exclusive XML Canonicalization: https://www.w3.org/TR/xml-exc-c14n/
*/
package security
