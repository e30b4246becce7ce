package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/admin-auth/internal/core/domain"
)

// Registrar implements ports.Registrar with a multi-document transaction.
type Registrar struct {
	client   *mongo.Client
	accounts *AccountRepository
	invites  *InviteRepository
}

func (r *Registrar) RegisterWithInvite(ctx context.Context, a *domain.Account, code string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, r.register(sc, a, code, now)
	})
	return err
}

// register inserts the account and consumes one use of code. It runs inside
// the transaction, so a failed consume discards the insert.
func (r *Registrar) register(ctx context.Context, a *domain.Account, code string, now time.Time) error {
	if _, err := r.accounts.col.InsertOne(ctx, toAccountDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}

	res, err := r.invites.col.UpdateOne(ctx, consumableFilter(code, now), bson.M{"$inc": bson.M{"current_uses": 1}})
	if err != nil {
		return fmt.Errorf("consume invite: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInviteCodeExhausted
	}
	return nil
}
