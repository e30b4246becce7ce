package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// ActivityRepository implements ports.ActivityRepository using MongoDB.
type ActivityRepository struct {
	col *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{col: db.Collection(collectionActivity)}
}

type activityDoc struct {
	ID        string         `bson:"_id"`
	ActorID   string         `bson:"user_id,omitempty"`
	Action    string         `bson:"action"`
	Details   map[string]any `bson:"details,omitempty"`
	IPAddress string         `bson:"ip_address,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
}

// Append inserts an entry. Entries are never updated.
func (r *ActivityRepository) Append(ctx context.Context, e *domain.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := activityDoc{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		Details:   e.Details,
		IPAddress: e.IPAddress,
		CreatedAt: e.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) List(ctx context.Context, offset, limit int) ([]domain.ActivityView, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	cursor, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: int64(offset)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionAccounts},
			{Key: "localField", Value: "user_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "actor"},
		}}},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Entry activityDoc  `bson:",inline"`
		Actor []accountDoc `bson:"actor"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("decode activity: %w", err)
	}

	out := make([]domain.ActivityView, 0, len(rows))
	for _, row := range rows {
		view := domain.ActivityView{ActivityEntry: domain.ActivityEntry{
			ID:        row.Entry.ID,
			ActorID:   row.Entry.ActorID,
			Action:    domain.ActivityAction(row.Entry.Action),
			Details:   row.Entry.Details,
			IPAddress: row.Entry.IPAddress,
			CreatedAt: row.Entry.CreatedAt.UTC(),
		}}
		if len(row.Actor) > 0 {
			view.ActorName = row.Actor[0].Name
			view.ActorEmail = row.Actor[0].Email
		}
		out = append(out, view)
	}
	return out, total, nil
}

func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
