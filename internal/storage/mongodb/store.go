// Package mongodb implements the delivery log using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/internal/storage"
)

// Store implements storage.DeliveryStore using MongoDB
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	deliveries *mongo.Collection
}

// Config holds MongoDB connection settings
type Config struct {
	URI        string
	Database   string
	Collection string
}

// NewStore connects to MongoDB and prepares the deliveries collection
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "deliveries"
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:     client,
		db:         db,
		deliveries: db.Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.deliveries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "sent_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating delivery indexes: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Save inserts d, filling in ID and SentAt when unset
func (s *Store) Save(ctx context.Context, d *storage.Delivery) error {
	doc := *d
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if doc.SentAt.IsZero() {
		doc.SentAt = time.Now().UTC()
	}

	_, err := s.deliveries.InsertOne(ctx, &doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("transaction %s: %w", d.TransactionID, storage.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	d.ID, d.SentAt = doc.ID, doc.SentAt
	return nil
}

// Get returns the delivery with transactionID
func (s *Store) Get(ctx context.Context, transactionID string) (*storage.Delivery, error) {
	var d storage.Delivery
	err := s.deliveries.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByRecipient returns the recipient's deliveries, newest first
func (s *Store) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*storage.Delivery, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.deliveries.Find(ctx, bson.M{"recipient_id": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	deliveries := []*storage.Delivery{}
	if err := cursor.All(ctx, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}

var _ storage.DeliveryStore = (*Store)(nil)
