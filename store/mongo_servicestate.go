package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// serviceStateDocumentID is the fixed _id of the single ServiceState
// document: there is never more than one.
const serviceStateDocumentID = "singleton"

type mongoServiceStateStore Database

func (s *mongoServiceStateStore) coll() *mongo.Collection { return (*Database)(s).serviceState }

func (s *mongoServiceStateStore) Get(ctx context.Context) (*model.ServiceState, error) {
	var doc struct {
		model.ServiceState `bson:",inline"`
	}
	err := s.coll().FindOne(ctx, bson.D{{Key: "_id", Value: serviceStateDocumentID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding service state")
	}
	return &doc.ServiceState, nil
}

func (s *mongoServiceStateStore) Put(ctx context.Context, state model.ServiceState) error {
	filter := bson.D{{Key: "_id", Value: serviceStateDocumentID}}
	update := bson.D{{Key: "$set", Value: state}}
	_, err := s.coll().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "upserting service state")
	}
	return nil
}
