package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

type mongoTransactionStore Database

func (s *mongoTransactionStore) coll() *mongo.Collection { return (*Database)(s).transactions }

// AddTransaction inserts tx, tolerating a duplicate-key error on
// transactionNumber as a successful no-op.
func (s *mongoTransactionStore) AddTransaction(ctx context.Context, tx model.Transaction) error {
	_, err := s.coll().InsertOne(ctx, tx)
	if err != nil && !isDuplicateKeyError(err) {
		return errors.Wrap(err, "inserting transaction")
	}
	return nil
}

func (s *mongoTransactionStore) GetLastTransaction(ctx context.Context) (*model.Transaction, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "transactionNumber", Value: -1}})
	var tx model.Transaction
	err := s.coll().FindOne(ctx, bson.D{}, opts).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding last transaction")
	}
	return &tx, nil
}

// GetTransactionsStartingFrom returns transactions whose transactionTime
// (block height) is in [inclusiveStartHeight, exclusiveEndHeight), ordered
// ascending by transactionNumber.
func (s *mongoTransactionStore) GetTransactionsStartingFrom(ctx context.Context, inclusiveStartHeight, exclusiveEndHeight uint64) ([]model.Transaction, error) {
	filter := bson.D{
		{Key: "transactionTime", Value: bson.D{
			{Key: "$gte", Value: inclusiveStartHeight},
			{Key: "$lt", Value: exclusiveEndHeight},
		}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "transactionNumber", Value: 1}})
	return s.find(ctx, filter, opts)
}

func (s *mongoTransactionStore) GetTransactionsLaterThan(ctx context.Context, transactionNumber *uint64, max int) ([]model.Transaction, error) {
	filter := bson.D{}
	if transactionNumber != nil {
		filter = bson.D{{Key: "transactionNumber", Value: bson.D{{Key: "$gt", Value: *transactionNumber}}}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "transactionNumber", Value: 1}})
	if max > 0 {
		opts = opts.SetLimit(int64(max))
	}
	return s.find(ctx, filter, opts)
}

// GetExponentiallySpacedTransactions returns the most recent transaction
// plus ever-more-widely-spaced older ones (by ordinal position, not by
// transactionNumber value), used to probe for a common ancestor after a
// suspected reorg.
func (s *mongoTransactionStore) GetExponentiallySpacedTransactions(ctx context.Context) ([]model.Transaction, error) {
	count, err := s.GetTransactionsCount(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	offsets := exponentialLookBackOffsets(uint64(count-1), 0)
	results := make([]model.Transaction, 0, len(offsets))
	for _, off := range offsets {
		skip := int64(off)
		opts := options.FindOne().
			SetSort(bson.D{{Key: "transactionNumber", Value: -1}}).
			SetSkip(skip)
		var tx model.Transaction
		err := s.coll().FindOne(ctx, bson.D{}, opts).Decode(&tx)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "finding exponentially spaced transaction")
		}
		results = append(results, tx)
	}
	return results, nil
}

func (s *mongoTransactionStore) RemoveTransactionsLaterThan(ctx context.Context, transactionNumber *uint64) error {
	filter := bson.D{}
	if transactionNumber != nil {
		filter = bson.D{{Key: "transactionNumber", Value: bson.D{{Key: "$gt", Value: *transactionNumber}}}}
	}
	_, err := s.coll().DeleteMany(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "removing transactions later than cutoff")
	}
	return nil
}

func (s *mongoTransactionStore) RemoveTransactionByTransactionTimeHash(ctx context.Context, hash string) error {
	_, err := s.coll().DeleteMany(ctx, bson.D{{Key: "transactionTimeHash", Value: hash}})
	if err != nil {
		return errors.Wrap(err, "removing transactions by time hash")
	}
	return nil
}

func (s *mongoTransactionStore) GetTransactionsCount(ctx context.Context) (int64, error) {
	count, err := s.coll().CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(err, "counting transactions")
	}
	return count, nil
}

func (s *mongoTransactionStore) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]model.Transaction, error) {
	cur, err := s.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	defer cur.Close(ctx)

	var txs []model.Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, errors.Wrap(err, "decoding transactions")
	}
	return txs, nil
}

// AddTransactionsBulk performs an ordered bulk insert of txs, tolerating a
// duplicate-key error on transactionNumber as a successful no-op (a replay
// of a batch already committed by a prior attempt).
func (s *mongoTransactionStore) AddTransactionsBulk(ctx context.Context, txs []model.Transaction) error {
	models := make([]mongo.WriteModel, 0, len(txs))
	for _, tx := range txs {
		models = append(models, mongo.NewInsertOneModel().SetDocument(tx))
	}
	return orderedBulkWrite(ctx, s.coll(), models)
}
