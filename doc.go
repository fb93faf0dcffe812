// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

/*
Package digitalmail sends Swedish digital mail ("Mina meddelanden") to the
government registered secure mailboxes of citizens.

# Overview

A mail is delivered as a SealedDelivery: a SignedDelivery document signed
with the sender's key, wrapped in a seal and signed again. The outer
document is posted to the recipient's mailbox operator, found through the
isReachable lookup.

# Package Structure

	pkg/codec        - Typed value to XML document conversion
	pkg/xmldoc       - XML documents with lazy byte, string and tree forms
	pkg/security     - Enveloped RSA-SHA256 signatures and verification
	pkg/message      - Delivery, seal and reachability message types
	pkg/legalid      - Legal id prefixing for persons and organizations
	pkg/delivery     - Building and verifying sealed deliveries
	pkg/reachability - Mailbox eligibility by supported supplier
	pkg/transport    - SOAP over HTTPS with retries
	internal/sender  - The send flow: lookup, build, deliver, record
	cmd/digitalmail  - Command line interface

# Quick Start

	pair, _ := security.NewCertificateKeyPair(cert, key)
	signer, _ := security.NewEnvelopeSigner(pair)
	mapper, _ := delivery.NewMapper(signer, "2120002411", "Sundsvalls kommun")

	secure, err := mapper.CreateSecureDelivery(&delivery.Request{
	    RecipientID: "197001011234",
	    Subject:     "Your parking permit",
	    SupportInfo: delivery.SupportInfo{Text: "Questions? Contact us."},
	    Body:        &delivery.BodyInfo{ContentType: "text/plain", Content: "Hello"},
	})

# Signatures

  - RSA-SHA256 over the whole document, referenced as ""
  - Exclusive XML Canonicalization
  - Signing certificate embedded in KeyInfo

# License

BSD-2-Clause License
*/
package digitalmail
