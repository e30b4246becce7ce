package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// InviteRepository implements ports.InviteRepository using MongoDB.
type InviteRepository struct {
	col *mongo.Collection
}

func NewInviteRepository(db *mongo.Database) *InviteRepository {
	return &InviteRepository{col: db.Collection(collectionInvites)}
}

type inviteDoc struct {
	ID          string     `bson:"_id"`
	Code        string     `bson:"code"`
	CreatedBy   string     `bson:"created_by"`
	MaxUses     int        `bson:"max_uses"`
	CurrentUses int        `bson:"current_uses"`
	ExpiresAt   *time.Time `bson:"expires_at"`
	Active      bool       `bson:"is_active"`
	CreatedAt   time.Time  `bson:"created_at"`
}

func (d inviteDoc) toDomain() *domain.InviteCode {
	return &domain.InviteCode{
		ID:          d.ID,
		Code:        d.Code,
		CreatedBy:   d.CreatedBy,
		MaxUses:     d.MaxUses,
		CurrentUses: d.CurrentUses,
		ExpiresAt:   utcPtr(d.ExpiresAt),
		Active:      d.Active,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// consumableFilter matches code only while it can absorb one more use at now.
func consumableFilter(code string, now time.Time) bson.M {
	return bson.M{
		"code":      code,
		"is_active": true,
		"$expr":     bson.M{"$lt": bson.A{"$current_uses", "$max_uses"}},
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now.UTC()}},
		},
	}
}

func (r *InviteRepository) Create(ctx context.Context, inv *domain.InviteCode) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := inviteDoc{
		ID:          inv.ID,
		Code:        inv.Code,
		CreatedBy:   inv.CreatedBy,
		MaxUses:     inv.MaxUses,
		CurrentUses: inv.CurrentUses,
		ExpiresAt:   utcPtr(inv.ExpiresAt),
		Active:      inv.Active,
		CreatedAt:   inv.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrInviteCodeTaken
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (r *InviteRepository) FindByCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc inviteDoc
	if err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("find invite: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns every code newest first with its creator's name.
func (r *InviteRepository) List(ctx context.Context) ([]ports.InviteListItem, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionAccounts},
			{Key: "localField", Value: "created_by"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "creator"},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Invite  inviteDoc    `bson:",inline"`
		Creator []accountDoc `bson:"creator"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode invites: %w", err)
	}

	out := make([]ports.InviteListItem, 0, len(rows))
	for _, row := range rows {
		item := ports.InviteListItem{InviteCode: *row.Invite.toDomain()}
		if len(row.Creator) > 0 {
			item.CreatorName = row.Creator[0].Name
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *InviteRepository) Deactivate(ctx context.Context, id string) (*domain.InviteCode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc inviteDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_active": false}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("deactivate invite: %w", err)
	}
	return doc.toDomain(), nil
}

// CountActive counts codes that are usable at now.
func (r *InviteRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := consumableFilter("", now)
	delete(filter, "code")
	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count active invites: %w", err)
	}
	return n, nil
}

// EnsureIndexes creates the unique code index.
func (r *InviteRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
