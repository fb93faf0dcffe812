// Package sender delivers digital mail to the recipients' secure mailboxes.
//
// A send runs these steps in order:
//
//  1. Reachability: ask the recipient service which mailbox the recipient
//     has and whether the sender may use it
//  2. Eligibility: keep the mailbox only if its operator is one of the
//     configured suppliers
//  3. Build: create the double-signed SealedDelivery
//  4. Deliver: post deliverSecure to the mailbox service address
//  5. Record: map the answer and write it to the delivery log
//
// # Errors
//
// Every failure reaches the caller as a *Problem with an HTTP-style status
// code and a short detail. The underlying error chain is logged and stays
// reachable through errors.Unwrap, but never leaks into the detail text.
//
// # Health
//
// A sender without organization number, name or supplier list is reported
// as degraded through the health Reporter instead of failing at startup.
// Sends are then refused with 503.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/health"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/storage"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/delivery"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/reachability"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/transport"
)

// Health check names
const (
	CheckSender   = "sender"
	CheckEnvelope = "envelope"
)

// Transport is the SOAP client. *transport.HTTPSClient implements it.
type Transport interface {
	IsReachable(ctx context.Context, endpoint string, req *message.IsReachable) (*message.IsReachableResponse, error)
	DeliverSecure(ctx context.Context, address string, req *message.DeliverSecure) (*message.DeliverSecureResponse, error)
}

// Config holds service settings
type Config struct {
	ReachabilityURL string
	// SenderConfigured is false when the organization or supplier list is
	// missing from the configuration
	SenderConfigured bool
}

// Service sends digital mail. It is safe for concurrent use.
type Service struct {
	mapper          *delivery.Mapper
	reachability    *reachability.Mapper
	transport       Transport
	store           storage.DeliveryStore
	health          health.Reporter
	metrics         *Metrics
	logger          *slog.Logger
	reachabilityURL string
	configured      bool
}

// NewService wires the send flow. A nil store selects the in-memory
// delivery log; metrics may be nil. The mapper may be nil only when the
// sender is not configured.
func NewService(
	cfg *Config,
	mapper *delivery.Mapper,
	reach *reachability.Mapper,
	client Transport,
	store storage.DeliveryStore,
	reporter health.Reporter,
	metrics *Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if cfg == nil || reach == nil || client == nil || reporter == nil {
		return nil, fmt.Errorf("config, reachability mapper, transport and health reporter are required")
	}
	if mapper == nil && cfg.SenderConfigured {
		return nil, fmt.Errorf("a configured sender requires a delivery mapper")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	s := &Service{
		mapper:          mapper,
		reachability:    reach,
		transport:       client,
		store:           store,
		health:          reporter,
		metrics:         metrics,
		logger:          logger,
		reachabilityURL: cfg.ReachabilityURL,
		configured:      cfg.SenderConfigured && mapper != nil && reach.Configured(),
	}

	if s.configured {
		reporter.SetHealthy(CheckSender)
	} else {
		reporter.SetUnhealthy(CheckSender, "sender organization or supported suppliers not configured")
	}
	return s, nil
}

// Send delivers req to the recipient's mailbox
func (s *Service) Send(ctx context.Context, req *delivery.Request) (*delivery.DigitalMailResponse, error) {
	if !s.configured {
		return nil, errNotConfigured()
	}
	if req == nil || req.RecipientID == "" {
		return nil, newProblem(http.StatusBadRequest, "Invalid request", "recipient id is required", nil)
	}

	log := s.logger.With("recipient", req.RecipientID)

	mailbox, err := s.lookupMailbox(ctx, req.RecipientID)
	if err != nil {
		s.metrics.IncDelivery("failed")
		return nil, err
	}
	log = log.With("supplier", mailbox.ServiceName)

	start := time.Now()
	secure, err := s.mapper.CreateSecureDelivery(req)
	s.metrics.ObserveBuild(time.Since(start))
	if err != nil {
		log.Error("building secure delivery failed", "error", err)
		s.health.SetUnhealthy(CheckEnvelope, err.Error())
		s.metrics.IncDelivery("failed")
		return nil, newProblem(http.StatusInternalServerError, "Envelope build failed",
			"the secure delivery could not be created", err)
	}
	s.health.SetHealthy(CheckEnvelope)

	deliverReq, err := delivery.CreateDeliverSecureRequest(secure)
	if err != nil {
		s.metrics.IncDelivery("failed")
		return nil, newProblem(http.StatusInternalServerError, "Envelope build failed",
			"the secure delivery could not be serialized", err)
	}

	resp, err := s.transport.DeliverSecure(ctx, mailbox.ServiceAddress, deliverReq)
	if err != nil {
		log.Error("deliverSecure failed", "service_address", mailbox.ServiceAddress, "error", err)
		s.metrics.IncDelivery("failed")
		return nil, transportProblem("Delivery failed", err)
	}

	result, err := delivery.CreateDigitalMailResponse(&resp.Return)
	if err != nil {
		s.metrics.IncDelivery("failed")
		return nil, newProblem(http.StatusBadGateway, "Delivery failed",
			"the mailbox service returned no delivery status", err)
	}

	status := deliveryStatus(resp.Return.Status[0])
	s.metrics.IncDelivery(string(status))
	s.record(ctx, log, req, secure, mailbox, result, status)

	log.Info("digital mail sent", "transaction_id", result.TransactionID, "status", status)
	return result, nil
}

// Reachable reports the mailbox of each recipient, eligible or not
func (s *Service) Reachable(ctx context.Context, recipientIDs []string) ([]reachability.Result, error) {
	if !s.configured {
		return nil, errNotConfigured()
	}
	if len(recipientIDs) == 0 {
		return nil, newProblem(http.StatusBadRequest, "Invalid request", "at least one recipient id is required", nil)
	}
	resp, err := s.isReachable(ctx, recipientIDs)
	if err != nil {
		return nil, err
	}
	return s.reachability.Statuses(resp), nil
}

// SelfCheck builds an envelope for a probe recipient and verifies both of
// its signatures. The outcome is reported as the envelope health check.
func (s *Service) SelfCheck() error {
	if s.mapper == nil {
		return errNotConfigured()
	}
	secure, err := s.mapper.CreateSecureDelivery(&delivery.Request{
		RecipientID: "000000000000",
		Subject:     "self check",
	})
	if err == nil {
		var b []byte
		if b, err = secure.Document.Bytes(); err == nil {
			_, err = delivery.VerifySealedDelivery(b)
		}
	}
	if err != nil {
		s.health.SetUnhealthy(CheckEnvelope, err.Error())
		return fmt.Errorf("self check: %w", err)
	}
	s.health.SetHealthy(CheckEnvelope)
	return nil
}

// History returns the logged deliveries to a recipient, newest first
func (s *Service) History(ctx context.Context, recipientID string, limit int) ([]*storage.Delivery, error) {
	return s.store.ListByRecipient(ctx, recipientID, limit)
}

func (s *Service) lookupMailbox(ctx context.Context, recipientID string) (*reachability.Result, error) {
	resp, err := s.isReachable(ctx, []string{recipientID})
	if err != nil {
		return nil, err
	}

	for _, mailbox := range s.reachability.MailboxSettings(resp) {
		if mailbox.RecipientID == recipientID {
			s.metrics.IncReachability("reachable")
			return &mailbox, nil
		}
	}

	s.metrics.IncReachability("unreachable")
	return nil, newProblem(http.StatusNotFound, "No mailbox",
		"the recipient has no mailbox this sender can deliver to", nil)
}

func errNotConfigured() *Problem {
	return newProblem(http.StatusServiceUnavailable, "Sender not configured",
		"the sender is missing organization or supplier configuration", nil)
}

func (s *Service) isReachable(ctx context.Context, recipientIDs []string) (*message.IsReachableResponse, error) {
	req := reachability.CreateIsReachableRequest(s.mapper.Sender().ID, recipientIDs)
	resp, err := s.transport.IsReachable(ctx, s.reachabilityURL, req)
	if err != nil {
		s.logger.Error("isReachable failed", "recipients", len(recipientIDs), "error", err)
		s.metrics.IncReachability("error")
		return nil, transportProblem("Reachability check failed", err)
	}
	return resp, nil
}

func (s *Service) record(ctx context.Context, log *slog.Logger, req *delivery.Request, secure *delivery.SecureDelivery,
	mailbox *reachability.Result, result *delivery.DigitalMailResponse, status storage.DeliveryStatus) {
	sum, err := secure.Document.Sum()
	if err != nil {
		log.Warn("hashing sealed delivery failed", "error", err)
	}

	d := secure.Sealed.SignedDelivery.Delivery
	entry := &storage.Delivery{
		TransactionID:  result.TransactionID,
		RecipientID:    req.RecipientID,
		SenderID:       d.Header.Sender.ID,
		CorrelationID:  d.Header.CorrelationID,
		Subject:        req.Subject,
		Supplier:       mailbox.ServiceName,
		ServiceAddress: mailbox.ServiceAddress,
		Status:         status,
		EnvelopeSHA256: sum,
	}
	if len(d.Message) > 0 {
		entry.MessageID = d.Message[0].Header.ID
	}

	// The mail is already delivered; a log failure must not fail the send
	if err := s.store.Save(ctx, entry); err != nil {
		log.Error("recording delivery failed", "transaction_id", result.TransactionID, "error", err)
	}
}

func deliveryStatus(st message.DeliveryStatus) storage.DeliveryStatus {
	switch {
	case st.Delivered:
		return storage.DeliveryStatusDelivered
	case st.Pending:
		return storage.DeliveryStatusPending
	default:
		return storage.DeliveryStatusRejected
	}
}

func transportProblem(title string, err error) *Problem {
	var fault *transport.FaultError
	if errors.As(err, &fault) {
		return newProblem(http.StatusBadGateway, title, fault.Fault.String, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newProblem(http.StatusGatewayTimeout, title, "the remote service did not answer in time", err)
	}
	return newProblem(http.StatusBadGateway, title, "the remote service could not be reached", err)
}
