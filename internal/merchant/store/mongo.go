package store

import (
	"context"
	"time"

	"github.com/xoobay/agent-commerce/internal/merchant/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrderStore struct {
	coll *mongo.Collection
}

func NewMongoOrderStore(client *mongo.Client, dbName string, collName string) *MongoOrderStore {
	return &MongoOrderStore{coll: client.Database(dbName).Collection(collName)}
}

func (s *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoOrderStore) Save(ctx context.Context, o model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, o)
	return err
}

func (s *MongoOrderStore) Get(ctx context.Context, orderID string) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.coll.FindOne(ctx, bson.M{"order_id": orderID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var o model.Order
	if err := res.Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *MongoOrderStore) Update(ctx context.Context, o model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"order_id": o.OrderID}, o, options.Replace().SetUpsert(false))
	return err
}

func (s *MongoOrderStore) List(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
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
	var out []model.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
