// Copyright (c) 2025 Sundsvalls kommun
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport implements the SOAP 1.1 over HTTPS client used to talk
to the recipient service and the mailbox services.

# TLS Configuration

The client negotiates TLS 1.3 with fallback to TLS 1.2:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3

For TLS 1.2, the following cipher suites are recommended:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Client Usage

	client := transport.NewHTTPSClient(&transport.HTTPSConfig{
	    MinTLSVersion: transport.TLS12,
	    Certificates:  []tls.Certificate{clientCert},
	    RootCAs:       certPool,
	    MaxRetries:    3,
	    RetryInterval: time.Second,
	}, logger)

	resp, err := client.IsReachable(ctx, reachabilityURL, req)

Network errors and 5xx responses are retried with a constant back-off.
A SOAP fault is never retried and comes back as a *FaultError:

	var fault *transport.FaultError
	if errors.As(err, &fault) {
	    log.Println(fault.Fault.Code, fault.Fault.String)
	}

# References

  - SOAP 1.1: https://www.w3.org/TR/2000/NOTE-SOAP-20000508/
  - TLS 1.3 RFC 8446: https://datatracker.ietf.org/doc/html/rfc8446
*/
package transport
