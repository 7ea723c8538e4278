package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/locktx"
)

// lockDocument is locktx.LockTransaction's on-disk shape; locktx stays
// free of a bson dependency so it can be unit tested without mongo-driver
// in scope.
type lockDocument struct {
	TransactionID      string `bson:"transactionId"`
	RedeemScriptHex    string `bson:"redeemScriptHex"`
	LockAmountSatoshis uint64 `bson:"lockAmountSatoshis"`
	CreatedAtHeight    uint64 `bson:"createdAtHeight"`
	UnlockAtHeight     uint64 `bson:"unlockAtHeight"`
	State              int    `bson:"state"`
	SequenceNumber     int64  `bson:"sequenceNumber"`
}

func toDocument(lock locktx.LockTransaction, seq int64) lockDocument {
	return lockDocument{
		TransactionID:      lock.TransactionID,
		RedeemScriptHex:    lock.RedeemScriptHex,
		LockAmountSatoshis: lock.LockAmountSatoshis,
		CreatedAtHeight:    lock.CreatedAtHeight,
		UnlockAtHeight:     lock.UnlockAtHeight,
		State:              int(lock.State),
		SequenceNumber:     seq,
	}
}

func fromDocument(doc lockDocument) locktx.LockTransaction {
	return locktx.LockTransaction{
		TransactionID:      doc.TransactionID,
		RedeemScriptHex:    doc.RedeemScriptHex,
		LockAmountSatoshis: doc.LockAmountSatoshis,
		CreatedAtHeight:    doc.CreatedAtHeight,
		UnlockAtHeight:     doc.UnlockAtHeight,
		State:              locktx.State(doc.State),
	}
}

// LockTransactionStore is the MongoDB-backed locktx.Store: every Add
// appends a new, monotonically-numbered document rather than mutating in
// place, so the full lock history is retained.
type LockTransactionStore struct {
	coll *mongo.Collection
}

// NewLockTransactionStore returns a LockTransactionStore bound to db.
func NewLockTransactionStore(db *Database) *LockTransactionStore {
	return &LockTransactionStore{coll: db.client.Database(db.transactions.Database().Name()).Collection("lockTransactions")}
}

func (s *LockTransactionStore) GetLatest(ctx context.Context) (*locktx.LockTransaction, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "sequenceNumber", Value: -1}})
	var doc lockDocument
	err := s.coll.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding latest lock transaction")
	}
	lock := fromDocument(doc)
	return &lock, nil
}

func (s *LockTransactionStore) Add(ctx context.Context, lock locktx.LockTransaction) error {
	latest, err := s.GetLatest(ctx)
	if err != nil {
		return err
	}
	seq := int64(0)
	if latest != nil {
		var latestDoc lockDocument
		opts := options.FindOne().SetSort(bson.D{{Key: "sequenceNumber", Value: -1}})
		if err := s.coll.FindOne(ctx, bson.D{}, opts).Decode(&latestDoc); err == nil {
			seq = latestDoc.SequenceNumber + 1
		}
	}

	_, err = s.coll.InsertOne(ctx, toDocument(lock, seq))
	if err != nil {
		return errors.Wrap(err, "inserting lock transaction")
	}
	return nil
}
