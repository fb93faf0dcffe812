package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DeliveryStore
type MemoryStore struct {
	mu          sync.RWMutex
	byTx        map[string]*Delivery
	byRecipient map[string][]*Delivery
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTx:        make(map[string]*Delivery),
		byRecipient: make(map[string][]*Delivery),
	}
}

// Save records a copy of d, filling in ID and SentAt when unset. d is
// updated only when the delivery was stored.
func (s *MemoryStore) Save(_ context.Context, d *Delivery) error {
	stored := *d
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.SentAt.IsZero() {
		stored.SentAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTx[stored.TransactionID]; ok {
		return ErrDuplicate
	}
	s.byTx[stored.TransactionID] = &stored
	s.byRecipient[stored.RecipientID] = append(s.byRecipient[stored.RecipientID], &stored)
	d.ID, d.SentAt = stored.ID, stored.SentAt
	return nil
}

// Get returns a copy of the delivery with transactionID
func (s *MemoryStore) Get(_ context.Context, transactionID string) (*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byTx[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

// ListByRecipient returns copies of the recipient's deliveries, newest first
func (s *MemoryStore) ListByRecipient(_ context.Context, recipientID string, limit int) ([]*Delivery, error) {
	s.mu.RLock()
	list := s.byRecipient[recipientID]
	out := make([]*Delivery, 0, len(list))
	for _, d := range list {
		c := *d
		out = append(out, &c)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

var _ DeliveryStore = (*MemoryStore)(nil)
