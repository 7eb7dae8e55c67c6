// Package mongodb provides MongoDB-backed persistence for activities.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"example.com/fitness/services/activity-service/internal/domain"
)

// ActivitiesCollection holds one document per activity.
const ActivitiesCollection = "activities"

// Connect opens an instrumented client and verifies the primary is reachable.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

type activityDocument struct {
	ID              string         `bson:"_id"`
	OwnerID         string         `bson:"owner_id"`
	Type            string         `bson:"type"`
	DurationSeconds int            `bson:"duration_seconds"`
	CaloriesBurned  int            `bson:"calories_burned"`
	StartTime       time.Time      `bson:"start_time"`
	Metrics         map[string]any `bson:"metrics,omitempty"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

// Repository stores activities in a MongoDB collection.
type Repository struct {
	activities *mongo.Collection
}

// NewRepository constructs a Repository on db.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{activities: db.Collection(ActivitiesCollection)}
}

// EnsureIndexes creates the owner listing index if missing.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.activities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create owner index: %w", err)
	}
	return nil
}

// Create implements domain.Repository.
func (r *Repository) Create(ctx context.Context, record domain.ActivityRecord) error {
	if _, err := r.activities.InsertOne(ctx, toDocument(record)); err != nil {
		return fmt.Errorf("insert activity %s: %w", record.ID, err)
	}
	return nil
}

// Get implements domain.Repository.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.ActivityRecord, error) {
	var doc activityDocument
	err := r.activities.FindOne(ctx, bson.M{"_id": activityID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := fromDocument(doc)
	return &record, nil
}

// ListByOwner implements domain.Repository.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ActivityRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.activities.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]domain.ActivityRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

// Delete implements domain.Repository.
func (r *Repository) Delete(ctx context.Context, activityID string) (bool, error) {
	res, err := r.activities.DeleteOne(ctx, bson.M{"_id": activityID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func toDocument(record domain.ActivityRecord) activityDocument {
	return activityDocument{
		ID:              record.ID,
		OwnerID:         record.OwnerID,
		Type:            record.Type,
		DurationSeconds: record.DurationSeconds,
		CaloriesBurned:  record.CaloriesBurned,
		StartTime:       record.StartTime,
		Metrics:         record.AdditionalMetrics,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func fromDocument(doc activityDocument) domain.ActivityRecord {
	return domain.ActivityRecord{
		ID:                doc.ID,
		OwnerID:           doc.OwnerID,
		Type:              doc.Type,
		DurationSeconds:   doc.DurationSeconds,
		CaloriesBurned:    doc.CaloriesBurned,
		StartTime:         doc.StartTime.UTC(),
		AdditionalMetrics: doc.Metrics,
		CreatedAt:         doc.CreatedAt.UTC(),
		UpdatedAt:         doc.UpdatedAt.UTC(),
	}
}
