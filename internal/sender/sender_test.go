package sender

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/health"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/storage"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/delivery"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/reachability"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/transport"
)

const (
	testReachabilityURL = "https://recipient.example.com/Recipient"
	testServiceAddress  = "https://service.kivra.example.com/service"
	testRecipient       = "197001011234"
)

type fakeTransport struct {
	mu sync.Mutex

	reachable    *message.IsReachableResponse
	reachableErr error
	delivered    *message.DeliverSecureResponse
	deliverErr   error

	reachableReqs []*message.IsReachable
	deliverAddrs  []string
	deliverReqs   []*message.DeliverSecure
}

func (f *fakeTransport) IsReachable(_ context.Context, endpoint string, req *message.IsReachable) (*message.IsReachableResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if endpoint != testReachabilityURL {
		return nil, errors.New("unexpected endpoint " + endpoint)
	}
	f.reachableReqs = append(f.reachableReqs, req)
	return f.reachable, f.reachableErr
}

func (f *fakeTransport) DeliverSecure(_ context.Context, address string, req *message.DeliverSecure) (*message.DeliverSecureResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliverAddrs = append(f.deliverAddrs, address)
	f.deliverReqs = append(f.deliverReqs, req)
	return f.delivered, f.deliverErr
}

func kivraMailbox(recipient string) message.ReachabilityStatus {
	return message.ReachabilityStatus{
		SenderAccepted: true,
		AccountStatus: message.AccountStatus{
			RecipientID: recipient,
			ServiceSupplier: &message.ServiceSupplier{
				ID:             "165568402266",
				Name:           "Kivra",
				ServiceAddress: testServiceAddress,
			},
		},
	}
}

func newTestMapper(t *testing.T) *delivery.Mapper {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "digital-mail-sender"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pair, err := security.NewCertificateKeyPair(cert, key)
	require.NoError(t, err)
	signer, err := security.NewEnvelopeSigner(pair)
	require.NoError(t, err)

	mapper, err := delivery.NewMapper(signer, "2120002411", "Sundsvalls kommun")
	require.NoError(t, err)
	return mapper
}

type fixture struct {
	service   *Service
	transport *fakeTransport
	store     *storage.MemoryStore
	health    *health.Registry
	metrics   *Metrics
}

func newFixture(t *testing.T, configured bool) *fixture {
	t.Helper()

	f := &fixture{
		transport: &fakeTransport{
			reachable: &message.IsReachableResponse{Return: []message.ReachabilityStatus{kivraMailbox(testRecipient)}},
			delivered: &message.DeliverSecureResponse{Return: message.DeliveryResult{
				TransactionID: "tx-1",
				Status:        []message.DeliveryStatus{{RecipientID: testRecipient, Delivered: true}},
			}},
		},
		store:   storage.NewMemoryStore(),
		health:  health.NewRegistry(nil, nil),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}

	service, err := NewService(
		&Config{ReachabilityURL: testReachabilityURL, SenderConfigured: configured},
		newTestMapper(t),
		reachability.NewMapper([]string{"kivra", "billo"}, nil),
		f.transport,
		f.store,
		f.health,
		f.metrics,
		nil,
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func testRequest() *delivery.Request {
	return &delivery.Request{
		RecipientID: testRecipient,
		Subject:     "Some subject",
		SupportInfo: delivery.SupportInfo{Text: "support text"},
		Body:        &delivery.BodyInfo{ContentType: "text/plain", Content: "Some body"},
	}
}

func requireProblem(t *testing.T, err error, status int) *Problem {
	t.Helper()
	var p *Problem
	require.True(t, errors.As(err, &p), "expected *Problem, got %v", err)
	assert.Equal(t, status, p.Status)
	return p
}

func TestService_Send(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	resp, err := f.service.Send(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, "tx-1", resp.TransactionID)
	assert.True(t, resp.Delivered)

	require.Len(t, f.transport.reachableReqs, 1)
	assert.Equal(t, "162120002411", f.transport.reachableReqs[0].SenderOrgNr)
	assert.Equal(t, []string{testRecipient}, f.transport.reachableReqs[0].RecipientID)

	require.Len(t, f.transport.deliverReqs, 1)
	assert.Equal(t, testServiceAddress, f.transport.deliverAddrs[0])
	_, err = delivery.VerifySealedDelivery(f.transport.deliverReqs[0].SealedDelivery)
	assert.NoError(t, err, "the posted envelope must carry valid signatures")

	logged, err := f.store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, testRecipient, logged.RecipientID)
	assert.Equal(t, "kivra", logged.Supplier)
	assert.Equal(t, storage.DeliveryStatusDelivered, logged.Status)
	assert.Len(t, logged.EnvelopeSHA256, 64)
	assert.NotEmpty(t, logged.MessageID)

	history, err := f.service.History(ctx, testRecipient, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReachabilityLookups.WithLabelValues("reachable")))

	s, ok := f.health.Status(CheckSender)
	require.True(t, ok)
	assert.True(t, s.Healthy)
}

func TestService_Send_NoEligibleMailbox(t *testing.T) {
	f := newFixture(t, true)
	status := kivraMailbox(testRecipient)
	status.AccountStatus.ServiceSupplier.Name = "Unknown Mail AB"
	f.transport.reachable = &message.IsReachableResponse{Return: []message.ReachabilityStatus{status}}

	_, err := f.service.Send(context.Background(), testRequest())
	requireProblem(t, err, http.StatusNotFound)
	assert.Empty(t, f.transport.deliverReqs)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReachabilityLookups.WithLabelValues("unreachable")))
}

func TestService_Send_MailboxOfAnotherRecipient(t *testing.T) {
	f := newFixture(t, true)
	f.transport.reachable = &message.IsReachableResponse{Return: []message.ReachabilityStatus{kivraMailbox("197001015678")}}

	_, err := f.service.Send(context.Background(), testRequest())
	requireProblem(t, err, http.StatusNotFound)
}

func TestService_Send_TransportErrors(t *testing.T) {
	fault := &transport.FaultError{StatusCode: 500, Fault: &message.Fault{Code: "S:Server", String: "Recipient blocked"}}

	tests := []struct {
		name       string
		setup      func(*fakeTransport)
		wantStatus int
		wantDetail string
	}{
		{
			name:       "reachability unavailable",
			setup:      func(ft *fakeTransport) { ft.reachableErr = errors.New("connection refused") },
			wantStatus: http.StatusBadGateway,
			wantDetail: "could not be reached",
		},
		{
			name:       "reachability timeout",
			setup:      func(ft *fakeTransport) { ft.reachableErr = context.DeadlineExceeded },
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "delivery fault",
			setup:      func(ft *fakeTransport) { ft.deliverErr = fault },
			wantStatus: http.StatusBadGateway,
			wantDetail: "Recipient blocked",
		},
		{
			name: "no delivery status",
			setup: func(ft *fakeTransport) {
				ft.delivered = &message.DeliverSecureResponse{Return: message.DeliveryResult{TransactionID: "tx-2"}}
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			tt.setup(f.transport)

			_, err := f.service.Send(context.Background(), testRequest())
			p := requireProblem(t, err, tt.wantStatus)
			if tt.wantDetail != "" {
				assert.Contains(t, p.Detail, tt.wantDetail)
			}

			list, _ := f.store.ListByRecipient(context.Background(), testRecipient, 0)
			assert.Empty(t, list)
		})
	}
}

func TestService_Send_FaultKeepsCause(t *testing.T) {
	f := newFixture(t, true)
	f.transport.deliverErr = &transport.FaultError{StatusCode: 500, Fault: &message.Fault{String: "nope"}}

	_, err := f.service.Send(context.Background(), testRequest())
	assert.ErrorIs(t, err, transport.ErrFault)
}

func TestService_Send_BuildFailure(t *testing.T) {
	f := newFixture(t, true)
	req := testRequest()
	req.Attachments = []delivery.File{{Content: "%%%", Filename: "broken.pdf"}}

	_, err := f.service.Send(context.Background(), req)
	p := requireProblem(t, err, http.StatusInternalServerError)
	assert.NotContains(t, p.Detail, "broken.pdf", "internal errors stay out of the detail")
	assert.ErrorIs(t, err, delivery.ErrBuild)

	s, ok := f.health.Status(CheckEnvelope)
	require.True(t, ok)
	assert.False(t, s.Healthy)
}

func TestService_Send_PendingAndRejected(t *testing.T) {
	for name, tc := range map[string]struct {
		status message.DeliveryStatus
		want   storage.DeliveryStatus
	}{
		"pending":  {message.DeliveryStatus{Pending: true}, storage.DeliveryStatusPending},
		"rejected": {message.DeliveryStatus{}, storage.DeliveryStatusRejected},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, true)
			f.transport.delivered = &message.DeliverSecureResponse{Return: message.DeliveryResult{
				TransactionID: "tx-9",
				Status:        []message.DeliveryStatus{tc.status},
			}}

			resp, err := f.service.Send(context.Background(), testRequest())
			require.NoError(t, err)
			assert.False(t, resp.Delivered)

			logged, err := f.store.Get(context.Background(), "tx-9")
			require.NoError(t, err)
			assert.Equal(t, tc.want, logged.Status)
		})
	}
}

func TestService_NotConfigured(t *testing.T) {
	f := newFixture(t, false)

	s, ok := f.health.Status(CheckSender)
	require.True(t, ok)
	assert.False(t, s.Healthy)

	_, err := f.service.Send(context.Background(), testRequest())
	requireProblem(t, err, http.StatusServiceUnavailable)
	_, err = f.service.Reachable(context.Background(), []string{testRecipient})
	requireProblem(t, err, http.StatusServiceUnavailable)
	assert.Empty(t, f.transport.reachableReqs)
}

func TestService_NoMapper(t *testing.T) {
	reg := health.NewRegistry(nil, nil)
	service, err := NewService(
		&Config{ReachabilityURL: testReachabilityURL},
		nil,
		reachability.NewMapper(nil, nil),
		&fakeTransport{},
		nil,
		reg,
		nil,
		nil,
	)
	require.NoError(t, err)

	s, ok := reg.Status(CheckSender)
	require.True(t, ok)
	assert.False(t, s.Healthy)

	_, err = service.Send(context.Background(), testRequest())
	requireProblem(t, err, http.StatusServiceUnavailable)
	requireProblem(t, service.SelfCheck(), http.StatusServiceUnavailable)
	_, ok = reg.Status(CheckEnvelope)
	assert.False(t, ok)
}

func TestService_InvalidRequest(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.service.Send(context.Background(), nil)
	requireProblem(t, err, http.StatusBadRequest)

	_, err = f.service.Reachable(context.Background(), nil)
	requireProblem(t, err, http.StatusBadRequest)
}

func TestService_Reachable(t *testing.T) {
	f := newFixture(t, true)
	blocked := kivraMailbox("197001015678")
	blocked.SenderAccepted = false
	f.transport.reachable = &message.IsReachableResponse{Return: []message.ReachabilityStatus{
		kivraMailbox(testRecipient), blocked,
	}}

	results, err := f.service.Reachable(context.Background(), []string{testRecipient, "197001015678"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Reachable)
	assert.Equal(t, "kivra", results[0].ServiceName)
	assert.False(t, results[1].Reachable)
}

func TestService_SelfCheck(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.service.SelfCheck())
	s, ok := f.health.Status(CheckEnvelope)
	require.True(t, ok)
	assert.True(t, s.Healthy)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(&Config{}, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewService(&Config{SenderConfigured: true}, nil, reachability.NewMapper([]string{"kivra"}, nil),
		&fakeTransport{}, nil, health.NewRegistry(nil, nil), nil, nil)
	assert.Error(t, err)
}

func TestProblem_Error(t *testing.T) {
	cause := errors.New("boom")
	p := newProblem(http.StatusBadGateway, "Delivery failed", "remote down", cause)
	assert.Equal(t, "Delivery failed (502): remote down", p.Error())
	assert.ErrorIs(t, p, cause)
	assert.Equal(t, "No mailbox (404)", newProblem(http.StatusNotFound, "No mailbox", "", nil).Error())
}
