package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/99minutos/admin-auth/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

const (
	collectionAccounts = "users"
	collectionInvites  = "invite_codes"
	collectionActivity = "activity_logs"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// Store bundles the MongoDB-backed repositories. Registration uses a
// multi-document transaction and therefore requires a replica set.
type Store struct {
	client   *mongo.Client
	accounts *AccountRepository
	invites  *InviteRepository
	activity *ActivityRepository
}

func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:   client,
		accounts: NewAccountRepository(db),
		invites:  NewInviteRepository(db),
		activity: NewActivityRepository(db),
	}
}

func (s *Store) Accounts() ports.AccountRepository  { return s.accounts }
func (s *Store) Invites() ports.InviteRepository    { return s.invites }
func (s *Store) Activity() ports.ActivityRepository { return s.activity }
func (s *Store) Registrar() ports.Registrar {
	return &Registrar{client: s.client, accounts: s.accounts, invites: s.invites}
}

// EnsureSchema creates the unique and lookup indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.accounts.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("account indexes: %w", err)
	}
	if err := s.invites.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("invite indexes: %w", err)
	}
	if err := s.activity.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("activity indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
