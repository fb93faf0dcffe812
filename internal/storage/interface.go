// Package storage provides the delivery log of the digital mail sender.
//
// Every envelope accepted by a mailbox service is recorded with the
// transaction id the service returned, so a delivery can be traced from
// the recipient back to the exact signed document that was sent.
//
// # Implementations
//
// [MemoryStore] keeps the log in process and is used when no database is
// configured. The mongodb sub-package stores it in MongoDB.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no delivery matches
	ErrNotFound = errors.New("delivery not found")
	// ErrDuplicate is returned when a transaction id is already recorded
	ErrDuplicate = errors.New("delivery already recorded")
)

// DeliveryStore records delivered envelopes
type DeliveryStore interface {
	// Save records a delivery. The transaction id must be unique.
	Save(ctx context.Context, d *Delivery) error

	// Get returns the delivery with the given transaction id
	Get(ctx context.Context, transactionID string) (*Delivery, error)

	// ListByRecipient returns the deliveries to a recipient, newest first.
	// A limit of zero or less returns all of them.
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*Delivery, error)

	// Close releases storage resources
	Close(ctx context.Context) error
}

// Delivery is one sent envelope and the mailbox service's answer
type Delivery struct {
	ID            string `bson:"_id" json:"id"`
	TransactionID string `bson:"transaction_id" json:"transactionId"`
	RecipientID   string `bson:"recipient_id" json:"recipientId"`
	SenderID      string `bson:"sender_id" json:"senderId"`
	MessageID     string `bson:"message_id" json:"messageId"`
	CorrelationID string `bson:"correlation_id,omitempty" json:"correlationId,omitempty"`
	Subject       string `bson:"subject" json:"subject"`

	// Mailbox operator that received the envelope
	Supplier       string `bson:"supplier" json:"supplier"`
	ServiceAddress string `bson:"service_address" json:"serviceAddress"`

	Status DeliveryStatus `bson:"status" json:"status"`

	// Hex SHA-256 of the signed SealedDelivery bytes
	EnvelopeSHA256 string `bson:"envelope_sha256" json:"envelopeSha256"`

	SentAt time.Time `bson:"sent_at" json:"sentAt"`
}

// DeliveryStatus is the outcome reported by the mailbox service
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusRejected  DeliveryStatus = "rejected"
)
