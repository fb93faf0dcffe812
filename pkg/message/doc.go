// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the typed documents exchanged with the secure
digital mail service.

# Deliveries

A delivery is sent as two nested documents in the Message v3 schema:

  - SignedDelivery: the sender's delivery header and message, signed by
    the sender
  - SealedDelivery: the signed delivery plus a Seal (receipt time and a
    "signatures OK" flag), signed again

Use the builder to construct the inner document:

	delivery, err := message.NewSignedDelivery(
	    message.WithSender("162120002411", "Sundsvalls kommun"),
	    message.WithRecipient("197001011234"),
	    message.WithSubject("Some subject"),
	    message.WithBody(message.MessageBody{ContentType: message.ContentTypePlain, Body: []byte("Some body")}),
	).Build()

RawSealedDelivery wraps already signed bytes without re-encoding them, so
the inner signature stays valid.

# Reachability

IsReachable and IsReachableResponse are the payloads of the reachability
query in the Recipient v3 service.

# SOAP

MarshalEnvelope and UnmarshalEnvelope wrap and unwrap payloads in SOAP 1.1
envelopes. Binary content is carried as Base64Binary.
*/
package message
