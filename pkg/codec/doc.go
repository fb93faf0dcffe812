// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

// Package codec converts between text and byte buffers in a named character
// set.
//
// Failures are reported as [*EncodingError] values that carry enough context
// to locate the offending bytes: the offset, a hex window around it, the
// charset name and, for charsets other than ISO-8859-1, a Latin-1 rendering
// of the same window.
package codec
