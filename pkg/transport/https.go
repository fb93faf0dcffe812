package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// ContentTypeSOAP11 is the media type of SOAP 1.1 requests
const ContentTypeSOAP11 = "text/xml; charset=utf-8"

// Upper bound of a response body read into memory
const maxResponseSize = 16 << 20

// Recommended TLS 1.2 cipher suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// ErrFault is matched by every *FaultError
var ErrFault = errors.New("SOAP fault")

// FaultError is returned when the peer answers with a SOAP fault
type FaultError struct {
	StatusCode int
	Fault      *message.Fault
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("SOAP fault %s: %s (HTTP %d)", e.Fault.Code, e.Fault.String, e.StatusCode)
}

func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}

// StatusError is returned for non-200 responses that carry no SOAP fault
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// HTTPSConfig contains HTTPS client configuration
type HTTPSConfig struct {
	MinTLSVersion      uint16
	MaxTLSVersion      uint16
	CipherSuites       []uint16
	Certificates       []tls.Certificate
	RootCAs            *x509.CertPool
	InsecureSkipVerify bool
	Timeout            time.Duration
	IdleConnTimeout    time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
	}
}

// HTTPSClient calls the mailbox and recipient SOAP services over HTTPS.
// It is safe for concurrent use.
type HTTPSClient struct {
	client *http.Client
	config *HTTPSConfig
	logger *slog.Logger
}

// NewHTTPSClient creates a new HTTPS client
func NewHTTPSClient(config *HTTPSConfig, logger *slog.Logger) *HTTPSClient {
	if config == nil {
		config = DefaultHTTPSConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	tlsConfig := &tls.Config{
		MinVersion:         config.MinTLSVersion,
		MaxVersion:         config.MaxTLSVersion,
		CipherSuites:       config.CipherSuites,
		Certificates:       config.Certificates,
		RootCAs:            config.RootCAs,
		InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // test toggle
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	return &HTTPSClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config: config,
		logger: logger,
	}
}

// DeliverSecure sends a sealed delivery to the mailbox service at address.
// A delivery is retried only while the request has not been written, so
// the mailbox service never receives it twice.
func (c *HTTPSClient) DeliverSecure(ctx context.Context, address string, req *message.DeliverSecure) (*message.DeliverSecureResponse, error) {
	resp := &message.DeliverSecureResponse{}
	if err := c.call(ctx, address, req, resp, false); err != nil {
		return nil, fmt.Errorf("deliverSecure: %w", err)
	}
	return resp, nil
}

// IsReachable asks the recipient service which mailboxes the recipients have
func (c *HTTPSClient) IsReachable(ctx context.Context, endpoint string, req *message.IsReachable) (*message.IsReachableResponse, error) {
	resp := &message.IsReachableResponse{}
	if err := c.Call(ctx, endpoint, req, resp); err != nil {
		return nil, fmt.Errorf("isReachable: %w", err)
	}
	return resp, nil
}

// Call posts payload in a SOAP envelope and decodes the response body
// into out. SOAP faults are returned as *FaultError. The operation must be
// idempotent: failed attempts are retried.
func (c *HTTPSClient) Call(ctx context.Context, endpoint string, payload, out any) error {
	return c.call(ctx, endpoint, payload, out, true)
}

func (c *HTTPSClient) call(ctx context.Context, endpoint string, payload, out any, idempotent bool) error {
	envelope, err := message.MarshalEnvelope(payload)
	if err != nil {
		return err
	}

	status, body, err := c.post(ctx, endpoint, envelope, ContentTypeSOAP11, idempotent)
	if err != nil {
		return err
	}

	fault, perr := message.UnmarshalEnvelope(body, out)
	if fault != nil {
		return &FaultError{StatusCode: status, Fault: fault}
	}
	if status != http.StatusOK {
		return &StatusError{StatusCode: status, Body: truncate(body)}
	}
	return perr
}

// Send posts a raw message and returns the response body
func (c *HTTPSClient) Send(ctx context.Context, endpoint string, msg []byte, contentType string) ([]byte, error) {
	status, body, err := c.post(ctx, endpoint, msg, contentType, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &StatusError{StatusCode: status, Body: truncate(body)}
	}
	return body, nil
}

// post sends body, retrying network errors and 5xx responses that are not
// SOAP faults. Unless idempotent is set, an attempt whose request reached
// the server is never retried.
func (c *HTTPSClient) post(ctx context.Context, endpoint string, body []byte, contentType string, idempotent bool) (int, []byte, error) {
	var (
		status   int
		respBody []byte
	)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", "digital-mail-sender/1.0")
		req.Header.Set("SOAPAction", `""`)

		var written atomic.Bool
		if !idempotent {
			req = req.WithContext(httptrace.WithClientTrace(req.Context(), &httptrace.ClientTrace{
				WroteRequest: func(info httptrace.WroteRequestInfo) {
					if info.Err == nil {
						written.Store(true)
					}
				},
			}))
		}
		// retryable reports err as permanent once a non-idempotent
		// request has been sent
		retryable := func(err error) error {
			if !idempotent && written.Load() {
				return backoff.Permanent(err)
			}
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return retryable(fmt.Errorf("failed to send request: %w", err))
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return retryable(fmt.Errorf("failed to read response: %w", err))
		}

		status, respBody = resp.StatusCode, b
		if resp.StatusCode >= http.StatusInternalServerError && !isFault(b) {
			return retryable(&StatusError{StatusCode: resp.StatusCode, Body: truncate(b)})
		}
		return nil
	}

	retries := c.config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.config.RetryInterval), uint64(retries)), ctx)

	notify := func(err error, next time.Duration) {
		c.logger.Warn("request failed, retrying", "endpoint", endpoint, "retry_in", next, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return 0, nil, err
	}
	return status, respBody, nil
}

func isFault(b []byte) bool {
	fault, _ := message.UnmarshalEnvelope(b, nil)
	return fault != nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
