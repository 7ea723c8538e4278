package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/logger"
)

var log = logger.Logger(logger.TagStore)

const mongoDuplicateKeyCode = 11000

// Database bundles the three collections the observer writes to plus the
// quantile-group collection NormalizedFeeCalculator backs onto, all
// sharing one underlying *mongo.Client connection.
type Database struct {
	client       *mongo.Client
	transactions *mongo.Collection
	blocks       *mongo.Collection
	serviceState *mongo.Collection
	quantiles    *mongo.Collection
}

// Connect dials connectionString and returns a Database bound to
// databaseName, creating the indexes each collection needs for its
// ordered-access patterns.
func Connect(ctx context.Context, connectionString, databaseName string) (*Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, errors.Wrap(err, "pinging mongodb")
	}

	db := client.Database(databaseName)
	d := &Database{
		client:       client,
		transactions: db.Collection("transactions"),
		blocks:       db.Collection("blockMetadata"),
		serviceState: db.Collection("serviceState"),
		quantiles:    db.Collection("quantileGroups"),
	}

	if err := d.ensureIndexes(ctx); err != nil {
		return nil, errors.Wrap(err, "ensuring indexes")
	}

	log.Infof("connected to mongodb database %s", databaseName)
	return d, nil
}

func (d *Database) ensureIndexes(ctx context.Context) error {
	txIndex := mongo.IndexModel{
		Keys:    map[string]int{"transactionNumber": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := d.transactions.Indexes().CreateOne(ctx, txIndex); err != nil {
		return errors.Wrap(err, "transactions index")
	}

	blockIndex := mongo.IndexModel{
		Keys:    map[string]int{"height": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := d.blocks.Indexes().CreateOne(ctx, blockIndex); err != nil {
		return errors.Wrap(err, "blockMetadata index")
	}

	quantileIndex := mongo.IndexModel{
		Keys:    map[string]int{"groupId": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := d.quantiles.Indexes().CreateOne(ctx, quantileIndex); err != nil {
		return errors.Wrap(err, "quantileGroups index")
	}

	return nil
}

// Disconnect closes the underlying connection.
func (d *Database) Disconnect(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Transactions returns the TransactionStore view of this database.
func (d *Database) Transactions() TransactionStore { return (*mongoTransactionStore)(d) }

// BlockMetadata returns the BlockMetadataStore view of this database.
func (d *Database) BlockMetadata() BlockMetadataStore { return (*mongoBlockMetadataStore)(d) }

// ServiceState returns the ServiceStateStore view of this database.
func (d *Database) ServiceState() ServiceStateStore { return (*mongoServiceStateStore)(d) }

// QuantileGroups returns the QuantileGroupStore view of this database.
func (d *Database) QuantileGroups() QuantileGroupStore { return (*mongoQuantileGroupStore)(d) }

// orderedBulkWrite performs an ordered bulk write: MongoDB stops at the
// first error in the batch rather than continuing past it, so a
// duplicate-key error partway through still aborts everything after it in
// order. A batch that fails solely because every failing write was a
// duplicate key (the whole batch, or a prefix of it, was already
// persisted by a prior attempt) is treated as a successful no-op.
func orderedBulkWrite(ctx context.Context, coll *mongo.Collection, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	opts := options.BulkWrite().SetOrdered(true)
	_, err := coll.BulkWrite(ctx, models, opts)
	if err == nil {
		return nil
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		if allDuplicateKey(bulkErr) {
			return nil
		}
	}
	return errors.Wrap(err, "bulk write")
}

func allDuplicateKey(bulkErr mongo.BulkWriteException) bool {
	for _, we := range bulkErr.WriteErrors {
		if we.Code != mongoDuplicateKeyCode {
			return false
		}
	}
	return true
}

func isDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

var majorityWriteConcern = writeconcern.Majority()
