// Package mongo implements store.Store on MongoDB using the official driver.
// Apply runs in a multi-document transaction, so the server must be a
// replica set or a sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
)

// Collection name constants.
const (
	colAccounts = "parkledger_accounts"
	colReceipts = "parkledger_receipts"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and uses the named database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("parkledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("parkledger/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// New wraps an existing client. The store takes ownership of it.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all parkledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("parkledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, addr address.Address) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).FindOne(ctx, bson.M{"_id": addr.Bytes()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, parkledger.ErrNotFound
		}
		return nil, fmt.Errorf("parkledger/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	filter := bson.M{}
	if !opts.Parent.IsZero() {
		filter["parent"] = opts.Parent.Bytes()
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	paginate(find, opts.Limit, opts.Offset)

	cur, err := s.db.Collection(colAccounts).Find(ctx, filter, find)
	if err != nil {
		return nil, fmt.Errorf("parkledger/mongo: list accounts: %w", err)
	}
	var models []accountModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("parkledger/mongo: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Receipt Store ====================

func (s *Store) ListReceipts(ctx context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	filter := bson.M{"account": subject.Bytes()}
	if opts.Op != "" {
		filter["op"] = string(opts.Op)
	}

	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	paginate(find, opts.Limit, opts.Offset)

	cur, err := s.db.Collection(colReceipts).Find(ctx, filter, find)
	if err != nil {
		return nil, fmt.Errorf("parkledger/mongo: list receipts: %w", err)
	}
	var models []receiptModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("parkledger/mongo: list receipts: %w", err)
	}

	result := make([]*receipt.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Commit ====================

// Apply commits cs in a multi-document transaction. Updates filter on the
// expected version; a miss, or a duplicate _id on create, aborts the
// transaction with ErrConflict.
func (s *Store) Apply(ctx context.Context, cs *store.ChangeSet) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("parkledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	accounts := s.db.Collection(colAccounts)
	receipts := s.db.Collection(colReceipts)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		for _, w := range cs.Writes {
			m := toAccountModel(w.Account)

			if w.IsCreate() {
				if _, err := accounts.InsertOne(ctx, m); err != nil {
					if mongo.IsDuplicateKeyError(err) {
						return nil, fmt.Errorf("%w: account %s already exists", parkledger.ErrConflict, w.Account.Address)
					}
					return nil, err
				}
				continue
			}

			res, err := accounts.ReplaceOne(ctx, bson.M{"_id": m.Address, "version": int64(w.Prev)}, m)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, fmt.Errorf("%w: account %s is not at version %d", parkledger.ErrConflict, w.Account.Address, w.Prev)
			}
		}

		if len(cs.Receipts) == 0 {
			return nil, nil
		}
		docs := make([]any, len(cs.Receipts))
		for i, r := range cs.Receipts {
			docs[i] = toReceiptModel(r)
		}
		_, err := receipts.InsertMany(ctx, docs)
		return nil, err
	})
	if err != nil {
		if errors.Is(err, parkledger.ErrConflict) {
			return err
		}
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w", parkledger.ErrConflict, err)
		}
		return fmt.Errorf("parkledger/mongo: apply: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

func paginate(find *options.FindOptionsBuilder, limit, offset int) {
	if limit > 0 {
		find.SetLimit(int64(limit))
	}
	if offset > 0 {
		find.SetSkip(int64(offset))
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all parkledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "parent", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colReceipts: {
			{
				Keys:    bson.D{{Key: "receipt_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		},
	}
}
