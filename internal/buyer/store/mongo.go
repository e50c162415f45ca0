package store

import (
	"context"
	"time"

	"github.com/xoobay/agent-commerce/internal/buyer/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPurchaseStore struct {
	coll *mongo.Collection
}

func NewMongoPurchaseStore(client *mongo.Client, dbName string, collName string) *MongoPurchaseStore {
	return &MongoPurchaseStore{coll: client.Database(dbName).Collection(collName)}
}

func (s *MongoPurchaseStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoPurchaseStore) Save(ctx context.Context, p model.Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, p)
	return err
}

func (s *MongoPurchaseStore) Get(ctx context.Context, orderID string) (*model.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.findOne(ctx, bson.M{"order_id": orderID})
}

func (s *MongoPurchaseStore) Update(ctx context.Context, p model.Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"order_id": p.OrderID}, p, options.Replace().SetUpsert(false))
	return err
}

func (s *MongoPurchaseStore) GetByCaseID(ctx context.Context, caseID string) (*model.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.findOne(ctx, bson.M{"case_id": caseID})
}

func (s *MongoPurchaseStore) findOne(ctx context.Context, filter bson.M) (*model.Purchase, error) {
	res := s.coll.FindOne(ctx, filter)
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var p model.Purchase
	if err := res.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoPurchaseStore) List(ctx context.Context, limit int) ([]model.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Purchase
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
