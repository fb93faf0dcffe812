package delivery

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/legalid"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
)

// Signer signs a document with an enveloped signature.
// *security.EnvelopeSigner implements it.
type Signer interface {
	Sign(doc *etree.Document) (*security.SignedDocument, error)
}

// Request is a mail to send. The recipient id is the already resolved
// legal id of the recipient.
type Request struct {
	RecipientID   string      `json:"recipientId"`
	Subject       string      `json:"subject"`
	Reference     string      `json:"reference,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
	SupportInfo   SupportInfo `json:"supportInfo"`
	Body          *BodyInfo   `json:"body,omitempty"`
	Attachments   []File      `json:"attachments,omitempty"`
}

// SupportInfo is the contact information shown with the message
type SupportInfo struct {
	Text         string `json:"supportText"`
	URL          string `json:"contactInformationUrl,omitempty"`
	Phone        string `json:"contactInformationPhoneNumber,omitempty"`
	EmailAddress string `json:"contactInformationEmail,omitempty"`
}

// SecureDelivery is the result of a build: the signed sealed document and
// its typed content
type SecureDelivery struct {
	Document       *security.SignedDocument
	Sealed         *message.SealedDelivery
	InnerSignature *security.Signature
}

// Mapper builds secure deliveries on behalf of one sending organization.
// It is safe for concurrent use.
type Mapper struct {
	signer Signer
	sender message.Sender
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Mapper
type Option func(*Mapper)

// WithClock replaces the clock used for seal timestamps
func WithClock(clock func() time.Time) Option {
	return func(m *Mapper) {
		m.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// NewMapper creates a mapper for the organization with the given number
// and name. Ten digit organization numbers get the legal id prefix.
func NewMapper(signer Signer, orgNumber, orgName string, opts ...Option) (*Mapper, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if strings.TrimSpace(orgNumber) == "" {
		return nil, fmt.Errorf("organization number is required")
	}

	m := &Mapper{
		signer: signer,
		sender: message.Sender{ID: legalid.AddPrefix(orgNumber), Name: orgName},
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// Sender returns the sender identity put in every delivery
func (m *Mapper) Sender() message.Sender {
	return m.sender
}

// CreateSecureDelivery builds and double-signs a delivery for req
func (m *Mapper) CreateSecureDelivery(req *Request) (*SecureDelivery, error) {
	mc := acquireMarshalContext()
	defer mc.release()

	p := &pipeline{mapper: m, req: req, mc: mc}
	for p.state != StateDone {
		if err := p.step(); err != nil {
			m.logger.Error("secure delivery build failed",
				"state", p.state.String(),
				"recipient", recipientOf(req),
				"error", err)
			return nil, &BuildError{State: p.state, Err: err}
		}
	}

	m.logger.Debug("secure delivery built",
		"recipient", req.RecipientID,
		"message_id", p.result.Sealed.SignedDelivery.Delivery.Message[0].Header.ID)
	return p.result, nil
}

// buildSignedDelivery maps req onto the unsigned inner document
func (m *Mapper) buildSignedDelivery(req *Request) (*message.SignedDelivery, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	body, err := CreateMessageBody(req.Body)
	if err != nil {
		return nil, err
	}
	attachments, err := CreateAttachments(req.Attachments)
	if err != nil {
		return nil, err
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	return message.NewSignedDelivery(
		message.WithSender(m.sender.ID, m.sender.Name),
		message.WithRecipient(req.RecipientID),
		message.WithReference(req.Reference),
		message.WithCorrelationID(correlationID),
		message.WithSubject(req.Subject),
		message.WithLanguage(message.DefaultLanguage),
		message.WithSupportInfo(message.SupportInfo{
			Text:         req.SupportInfo.Text,
			URL:          req.SupportInfo.URL,
			Telephone:    req.SupportInfo.Phone,
			EmailAddress: req.SupportInfo.EmailAddress,
		}),
		message.WithBody(body),
		message.WithAttachments(attachments...),
	).Build()
}

func recipientOf(req *Request) string {
	if req == nil {
		return ""
	}
	return req.RecipientID
}
