package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

// AccountRepository implements ports.AccountRepository using MongoDB.
type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(collectionAccounts)}
}

type accountDoc struct {
	ID             string     `bson:"_id"`
	Email          string     `bson:"email"`
	Name           string     `bson:"name"`
	PasswordHash   string     `bson:"password_hash"`
	Role           string     `bson:"role"`
	Active         bool       `bson:"is_active"`
	EmailVerified  bool       `bson:"email_verified"`
	FailedAttempts int        `bson:"failed_login_attempts"`
	LockedUntil    *time.Time `bson:"locked_until"`
	LastLoginAt    *time.Time `bson:"last_login"`
	InviteCodeUsed *string    `bson:"invite_code_used"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toAccountDoc(a *domain.Account) accountDoc {
	return accountDoc{
		ID:             a.ID,
		Email:          a.Email,
		Name:           a.Name,
		PasswordHash:   a.PasswordHash,
		Role:           string(a.Role),
		Active:         a.Active,
		EmailVerified:  a.EmailVerified,
		FailedAttempts: a.FailedAttempts,
		LockedUntil:    utcPtr(a.LockedUntil),
		LastLoginAt:    utcPtr(a.LastLoginAt),
		InviteCodeUsed: a.InviteCodeUsed,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}
}

func (d accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:             d.ID,
		Email:          d.Email,
		Name:           d.Name,
		PasswordHash:   d.PasswordHash,
		Role:           domain.Role(d.Role),
		Active:         d.Active,
		EmailVerified:  d.EmailVerified,
		FailedAttempts: d.FailedAttempts,
		LockedUntil:    utcPtr(d.LockedUntil),
		LastLoginAt:    utcPtr(d.LastLoginAt),
		InviteCodeUsed: d.InviteCodeUsed,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toAccountDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns a page of accounts newest first and the total match count.
func (r *AccountRepository) List(ctx context.Context, f ports.AccountFilter) ([]*domain.Account, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []accountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode accounts: %w", err)
	}
	out := make([]*domain.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, total, nil
}

func (r *AccountRepository) Update(ctx context.Context, id string, p ports.AccountPatch, now time.Time) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": now.UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Role != nil {
		set["role"] = string(*p.Role)
	}
	if p.Active != nil {
		set["is_active"] = *p.Active
	}

	var doc accountDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("update account: %w", err)
	}
	return doc.toDomain(), nil
}

// RecordFailedLogin increments the counter with a pipeline update so the
// lock decision reads the incremented value in the same atomic write.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id string, policy domain.LockoutPolicy, now time.Time) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now = now.UTC()
	var doc accountDoc
	err := r.col.FindOneAndUpdate(ctx, unlockedFilter(id, now), failedLoginPipeline(policy, now),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.lockedOrMissing(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("record failed login: %w", err)
	}
	return doc.toDomain(), nil
}

// unlockedFilter matches the account only while it has no lock in force.
func unlockedFilter(id string, now time.Time) bson.M {
	return bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"locked_until": nil},
			bson.M{"locked_until": bson.M{"$lte": now}},
		},
	}
}

// failedLoginPipeline increments the counter and, in a second stage that
// reads the incremented value, sets the lock once the threshold is reached.
func failedLoginPipeline(policy domain.LockoutPolicy, now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "failed_login_attempts", Value: bson.D{{Key: "$add", Value: bson.A{"$failed_login_attempts", 1}}}},
			{Key: "updated_at", Value: now},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "locked_until", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{"$failed_login_attempts", policy.Threshold}}},
				policy.LockUntil(now),
				"$locked_until",
			}}}},
		}}},
	}
}

// RecordSuccessfulLogin clears the guard only while the account is unlocked.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now = now.UTC()
	res, err := r.col.UpdateOne(ctx, unlockedFilter(id, now), bson.M{"$set": bson.M{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login":            now,
		"updated_at":            now,
	}})
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.lockedOrMissing(ctx, id)
	}
	return nil
}

// lockedOrMissing explains why an unlocked-only update matched nothing.
func (r *AccountRepository) lockedOrMissing(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrAccountLocked
}

func (r *AccountRepository) Stats(ctx context.Context, since time.Time) (*ports.AccountStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	st := &ports.AccountStats{ByRole: make(map[domain.Role]int64)}
	var err error
	if st.Total, err = r.col.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	if st.Active, err = r.col.CountDocuments(ctx, bson.M{"is_active": true}); err != nil {
		return nil, fmt.Errorf("count active accounts: %w", err)
	}
	if st.NewSince, err = r.col.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since.UTC()}}); err != nil {
		return nil, fmt.Errorf("count new accounts: %w", err)
	}

	cursor, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$role"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("group accounts by role: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Role  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode role counts: %w", err)
	}
	for _, row := range rows {
		st.ByRole[domain.Role(row.Role)] = row.Count
	}
	return st, nil
}

// EnsureIndexes creates the unique email index.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
