package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

type mongoBlockMetadataStore Database

func (s *mongoBlockMetadataStore) coll() *mongo.Collection { return (*Database)(s).blocks }

// Add bulk-inserts blocks, tolerating a duplicate-key error on height as a
// successful no-op.
func (s *mongoBlockMetadataStore) Add(ctx context.Context, blocks []model.BlockMetadata) error {
	models := make([]mongo.WriteModel, 0, len(blocks))
	for _, b := range blocks {
		models = append(models, mongo.NewInsertOneModel().SetDocument(b))
	}
	return orderedBulkWrite(ctx, s.coll(), models)
}

func (s *mongoBlockMetadataStore) RemoveLaterThan(ctx context.Context, height *uint64) error {
	filter := bson.D{}
	if height != nil {
		filter = bson.D{{Key: "height", Value: bson.D{{Key: "$gt", Value: *height}}}}
	}
	_, err := s.coll().DeleteMany(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "removing block metadata later than cutoff")
	}
	return nil
}

func (s *mongoBlockMetadataStore) Get(ctx context.Context, fromInclusive, toExclusive uint64) ([]model.BlockMetadata, error) {
	filter := bson.D{
		{Key: "height", Value: bson.D{
			{Key: "$gte", Value: fromInclusive},
			{Key: "$lt", Value: toExclusive},
		}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "height", Value: 1}})
	cur, err := s.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying block metadata")
	}
	defer cur.Close(ctx)

	var blocks []model.BlockMetadata
	if err := cur.All(ctx, &blocks); err != nil {
		return nil, errors.Wrap(err, "decoding block metadata")
	}
	return blocks, nil
}

func (s *mongoBlockMetadataStore) GetLast(ctx context.Context) (*model.BlockMetadata, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "height", Value: -1}})
	var b model.BlockMetadata
	err := s.coll().FindOne(ctx, bson.D{}, opts).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding last block metadata")
	}
	return &b, nil
}

func (s *mongoBlockMetadataStore) LookBackExponentially(ctx context.Context, maxHeight, minHeight uint64) ([]model.BlockMetadata, error) {
	heights := exponentialLookBackHeights(maxHeight, minHeight)

	results := make([]model.BlockMetadata, 0, len(heights))
	for _, h := range heights {
		var b model.BlockMetadata
		err := s.coll().FindOne(ctx, bson.D{{Key: "height", Value: h}}).Decode(&b)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "finding block metadata at height %d", h)
		}
		results = append(results, b)
	}
	return results, nil
}
