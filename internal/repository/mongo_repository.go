package repository

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/logging"
	"github.com/example/faces-api/internal/validation"
)

// MongoConfig selects the deployment, database and collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	PoolSize   uint64
}

// MongoPhotoRepository stores photo metadata in MongoDB. The client is created
// on first use and then shared by every call for the life of the process; a
// failed connect is retried on the next call.
type MongoPhotoRepository struct {
	logger *zap.Logger
	retry  logging.Retrier
	cfg    MongoConfig

	mu         sync.Mutex
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoPhotoRepository does not touch the network.
func NewMongoPhotoRepository(cfg MongoConfig, logger *zap.Logger) (*MongoPhotoRepository, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: connection string is required")
	}
	if cfg.Database == "" {
		cfg.Database = "faces"
	}
	if cfg.Collection == "" {
		cfg.Collection = "photos"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 2
	}
	return &MongoPhotoRepository{
		logger: logger.Named("mongo_photo_repository"),
		retry:  logging.NewRetrier(logger.Named("mongo_photo_repository")),
		cfg:    cfg,
	}, nil
}

func (r *MongoPhotoRepository) photos(ctx context.Context) (*mongo.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.collection != nil {
		return r.collection, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(r.cfg.URI).SetMaxPoolSize(r.cfg.PoolSize))
	if err != nil {
		return nil, logging.NewOperationError("mongo.connect", "", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, logging.NewOperationError("mongo.ping", "", err)
	}

	r.logger.Info("connected to mongo",
		zap.String("database", r.cfg.Database),
		zap.String("collection", r.cfg.Collection),
		zap.Uint64("pool_size", r.cfg.PoolSize),
	)
	r.client = client
	r.collection = client.Database(r.cfg.Database).Collection(r.cfg.Collection)
	return r.collection, nil
}

// Insert writes one record; it is not retried.
func (r *MongoPhotoRepository) Insert(ctx context.Context, record *PhotoRecord) error {
	coll, err := r.photos(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, record); err != nil {
		return logging.NewOperationError("mongo.insert_photo", record.ID, err)
	}
	return nil
}

// FindInBox returns every record whose x and y fall inside box, edges included.
func (r *MongoPhotoRepository) FindInBox(ctx context.Context, box validation.BoundingBox) ([]*PhotoRecord, error) {
	records := make([]*PhotoRecord, 0)
	err := r.retry.Do(ctx, "mongo.find_in_box", "", func() error {
		coll, err := r.photos(ctx)
		if err != nil {
			return err
		}
		cursor, err := coll.Find(ctx, boxFilter(box))
		if err != nil {
			return err
		}
		records = records[:0]
		return cursor.All(ctx, &records)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close disconnects the shared client if one was ever created.
func (r *MongoPhotoRepository) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Disconnect(ctx)
	r.client = nil
	r.collection = nil
	return err
}

func boxFilter(box validation.BoundingBox) bson.D {
	return bson.D{
		{Key: "x", Value: bson.D{{Key: "$gte", Value: box.StartX}, {Key: "$lte", Value: box.EndX}}},
		{Key: "y", Value: bson.D{{Key: "$gte", Value: box.StartY}, {Key: "$lte", Value: box.EndY}}},
	}
}
