package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

type mongoQuantileGroupStore Database

func (s *mongoQuantileGroupStore) coll() *mongo.Collection { return (*Database)(s).quantiles }

func (s *mongoQuantileGroupStore) Add(ctx context.Context, group model.QuantileGroup) error {
	filter := bson.D{{Key: "groupId", Value: group.GroupID}}
	update := bson.D{{Key: "$set", Value: group}}
	_, err := s.coll().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "upserting quantile group")
	}
	return nil
}

func (s *mongoQuantileGroupStore) Get(ctx context.Context, groupID uint64) (*model.QuantileGroup, error) {
	var g model.QuantileGroup
	err := s.coll().FindOne(ctx, bson.D{{Key: "groupId", Value: groupID}}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding quantile group %d", groupID)
	}
	return &g, nil
}

func (s *mongoQuantileGroupStore) GetLast(ctx context.Context) (*model.QuantileGroup, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "groupId", Value: -1}})
	var g model.QuantileGroup
	err := s.coll().FindOne(ctx, bson.D{}, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding last quantile group")
	}
	return &g, nil
}

func (s *mongoQuantileGroupStore) RemoveGreaterThanOrEqual(ctx context.Context, groupID uint64) error {
	filter := bson.D{{Key: "groupId", Value: bson.D{{Key: "$gte", Value: groupID}}}}
	_, err := s.coll().DeleteMany(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "removing quantile groups")
	}
	return nil
}
