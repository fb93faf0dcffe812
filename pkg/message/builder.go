package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DeliveryBuilder helps construct SignedDelivery documents
type DeliveryBuilder struct {
	delivery *SignedDelivery
	errors   []error
}

// Option represents a functional option for DeliveryBuilder
type Option func(*DeliveryBuilder)

// NewSignedDelivery creates a delivery holding a single message. The
// message gets a fresh id, the default language and an empty plain text
// body unless options say otherwise.
func NewSignedDelivery(opts ...Option) *DeliveryBuilder {
	builder := &DeliveryBuilder{
		delivery: &SignedDelivery{
			Delivery: Delivery{
				Message: []Message{{
					Header: MessageHeader{
						ID:       uuid.New().String(),
						Language: DefaultLanguage,
					},
					Body: MessageBody{
						ContentType: ContentTypePlain,
						Body:        Base64Binary{},
					},
				}},
			},
		},
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder
}

func (b *DeliveryBuilder) message() *Message {
	return &b.delivery.Delivery.Message[0]
}

// WithSender sets the sending organization
func WithSender(id, name string) Option {
	return func(b *DeliveryBuilder) {
		b.delivery.Delivery.Header.Sender = Sender{ID: id, Name: name}
	}
}

// WithRecipient sets the recipient's legal id
func WithRecipient(recipientID string) Option {
	return func(b *DeliveryBuilder) {
		b.delivery.Delivery.Header.Recipient = recipientID
	}
}

// WithReference sets the sender's own reference
func WithReference(ref string) Option {
	return func(b *DeliveryBuilder) {
		b.delivery.Delivery.Header.Reference = ref
	}
}

// WithCorrelationID sets the correlation id
func WithCorrelationID(id string) Option {
	return func(b *DeliveryBuilder) {
		b.delivery.Delivery.Header.CorrelationID = id
	}
}

// WithMessageID overrides the generated message id
func WithMessageID(id string) Option {
	return func(b *DeliveryBuilder) {
		b.message().Header.ID = id
	}
}

// WithSubject sets the message subject
func WithSubject(subject string) Option {
	return func(b *DeliveryBuilder) {
		b.message().Header.Subject = subject
	}
}

// WithLanguage overrides the default language
func WithLanguage(lang string) Option {
	return func(b *DeliveryBuilder) {
		b.message().Header.Language = lang
	}
}

// WithSupportInfo sets the support contact details
func WithSupportInfo(info SupportInfo) Option {
	return func(b *DeliveryBuilder) {
		b.message().Header.SupportInfo = info
	}
}

// WithBody sets the message body
func WithBody(body MessageBody) Option {
	return func(b *DeliveryBuilder) {
		if body.Body == nil {
			body.Body = Base64Binary{}
		}
		b.message().Body = body
	}
}

// WithAttachments appends attachments, keeping their order
func WithAttachments(attachments ...Attachment) Option {
	return func(b *DeliveryBuilder) {
		b.message().Attachment = append(b.message().Attachment, attachments...)
	}
}

// Build validates and returns the delivery
func (b *DeliveryBuilder) Build() (*SignedDelivery, error) {
	header := b.delivery.Delivery.Header
	if strings.TrimSpace(header.Sender.ID) == "" {
		b.errors = append(b.errors, fmt.Errorf("sender id is required"))
	}
	if strings.TrimSpace(header.Recipient) == "" {
		b.errors = append(b.errors, fmt.Errorf("recipient is required"))
	}

	body := b.message().Body
	if body.ContentType != ContentTypePlain && body.ContentType != ContentTypeHTML {
		b.errors = append(b.errors, fmt.Errorf("unsupported body content type %q", body.ContentType))
	}
	for i, a := range b.message().Attachment {
		if a.Filename == "" {
			b.errors = append(b.errors, fmt.Errorf("attachment %d: filename is required", i))
		}
	}

	if len(b.errors) > 0 {
		return nil, fmt.Errorf("invalid delivery: %w", errors.Join(b.errors...))
	}

	return b.delivery, nil
}
