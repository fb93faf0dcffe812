// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

// Package xmldoc parses, serializes and normalizes the XML documents that
// make up a secure delivery.
//
// Trees are github.com/beevik/etree documents. Serialization never emits an
// XML declaration, so the bytes produced here can be embedded verbatim in a
// surrounding document or handed to a canonicalizer.
package xmldoc
