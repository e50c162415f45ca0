package store

import (
	"context"
	"time"

	"github.com/xoobay/agent-commerce/internal/arbiter/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoCaseStore struct {
	coll *mongo.Collection
}

func NewMongoCaseStore(client *mongo.Client, dbName string, collName string) *MongoCaseStore {
	return &MongoCaseStore{coll: client.Database(dbName).Collection(collName)}
}

func (s *MongoCaseStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "case_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	return err
}

func (s *MongoCaseStore) Save(ctx context.Context, c model.ArbitrationCase) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, c)
	return err
}

func (s *MongoCaseStore) Get(ctx context.Context, caseID string) (*model.ArbitrationCase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.findOne(ctx, bson.M{"case_id": caseID})
}

func (s *MongoCaseStore) Update(ctx context.Context, c model.ArbitrationCase) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"case_id": c.CaseID}, c, options.Replace().SetUpsert(false))
	return err
}

func (s *MongoCaseStore) FindLiveByOrderID(ctx context.Context, orderID string) (*model.ArbitrationCase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.findOne(ctx, bson.M{
		"order_id": orderID,
		"status":   bson.M{"$ne": model.CaseStatusExecuted},
	})
}

func (s *MongoCaseStore) findOne(ctx context.Context, filter bson.M) (*model.ArbitrationCase, error) {
	res := s.coll.FindOne(ctx, filter)
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var c model.ArbitrationCase
	if err := res.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoCaseStore) List(ctx context.Context, status model.CaseStatus, limit int) ([]model.ArbitrationCase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.ArbitrationCase
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
