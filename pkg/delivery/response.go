package delivery

import (
	"fmt"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
)

// DigitalMailResponse is the outcome reported back to the caller
type DigitalMailResponse struct {
	TransactionID string `json:"transactionId"`
	Delivered     bool   `json:"delivered"`
}

// CreateDigitalMailResponse maps a delivery result. The service returns one
// status per request; only the first status entry is considered.
func CreateDigitalMailResponse(result *message.DeliveryResult) (*DigitalMailResponse, error) {
	if result == nil || len(result.Status) == 0 {
		return nil, ErrNoStatus
	}
	return &DigitalMailResponse{
		TransactionID: result.TransactionID,
		Delivered:     result.Status[0].Delivered,
	}, nil
}

// CreateDeliverSecureRequest wraps the signed sealed delivery in the
// deliverSecure operation payload
func CreateDeliverSecureRequest(secure *SecureDelivery) (*message.DeliverSecure, error) {
	if secure == nil || secure.Document == nil {
		return nil, fmt.Errorf("secure delivery is required")
	}
	b, err := secure.Document.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sealed delivery: %w", err)
	}
	return &message.DeliverSecure{SealedDelivery: b}, nil
}
