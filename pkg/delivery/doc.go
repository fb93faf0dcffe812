// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

/*
Package delivery turns mail requests into double-signed secure deliveries.

# Building a delivery

A Mapper runs a strictly sequential pipeline for every request:

	BUILD_INNER -> SERIALIZE_INNER -> SIGN_INNER -> REPARSE_SIGNED_INNER
	  -> BUILD_SEAL -> SERIALIZE_SEAL -> SIGN_SEAL -> REPARSE_SIGNED_SEAL
	  -> DONE

The inner SignedDelivery is signed by the sender first. Its signed bytes are
parsed back and wrapped, unchanged, in a SealedDelivery whose Seal carries
the time of the second signing pass and SignaturesOK=true. The sealed
document is then signed as a whole.

	mapper, err := delivery.NewMapper(signer, "2120002411", "Sundsvalls kommun")
	secure, err := mapper.CreateSecureDelivery(req)
	payload, err := delivery.CreateDeliverSecureRequest(secure)

Each build uses its own marshalling context which is released when the
build ends, whether it succeeded or not. Failures are reported as a
*BuildError naming the pipeline state that failed.

# Content

Plain text bodies are sent as their UTF-8 bytes. Other body types, such as
HTML, arrive base64 encoded and are sent decoded. A missing or blank body is
replaced with an empty text/plain body. Attachments arrive base64 encoded
and get an upper-case hex MD5 checksum of their decoded content.
*/
package delivery
