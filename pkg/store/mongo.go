package store

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/observability"
	"github.com/citegraph/layoutd/pkg/retry"
)

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI                 string        `toml:"uri"`
	Database            string        `toml:"database"`
	EdgesCollection     string        `toml:"edges_collection"`
	PositionsCollection string        `toml:"positions_collection"`
	Timeout             time.Duration `toml:"timeout"`
}

// DefaultMongoConfig returns the standard collection names and timeout.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:                 "mongodb://localhost:27017",
		Database:            "citegraph",
		EdgesCollection:     "edges",
		PositionsCollection: "positions",
		Timeout:             30 * time.Second,
	}
}

// MongoStore reads edges from and writes positions to MongoDB. It
// implements both EdgeSource and PositionSink.
type MongoStore struct {
	client    *mongo.Client
	edges     *mongo.Collection
	positions *mongo.Collection
	timeout   time.Duration
	logger    *log.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection with a
// ping. A nil logger disables logging.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *log.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "connecting to mongodb")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "pinging mongodb")
	}

	db := client.Database(cfg.Database)
	return &MongoStore{
		client:    client,
		edges:     db.Collection(cfg.EdgesCollection),
		positions: db.Collection(cfg.PositionsCollection),
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// CountEdges implements EdgeSource.
func (s *MongoStore) CountEdges(ctx context.Context) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.edges.CountDocuments(opCtx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeDataSource, err, "counting edges")
	}
	return count, nil
}

// LoadEdgesBatch implements EdgeSource. Batches are paginated with a
// stable _id sort so every offset maps to the same edges for the lifetime
// of a job, and transient read failures are retried with backoff.
func (s *MongoStore) LoadEdgesBatch(ctx context.Context, limit, offset int64) ([]graph.Edge, error) {
	var batch []graph.Edge
	start := time.Now()

	err := retry.RetryWithBackoff(ctx, func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		findOpts := options.Find().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetSkip(offset).
			SetLimit(limit)

		cursor, err := s.edges.Find(opCtx, bson.D{}, findOpts)
		if err != nil {
			return &retry.RetryableError{Err: err}
		}
		defer cursor.Close(opCtx)

		batch = batch[:0]
		if err := cursor.All(opCtx, &batch); err != nil {
			return &retry.RetryableError{Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, err,
			"loading edge batch at offset %d", offset)
	}

	observability.Store().OnBatchLoaded(ctx, int(offset), len(batch), time.Since(start))
	return batch, nil
}

// SavePositions implements PositionSink. Each chunk is one bulk write of
// upserts keyed by vertex id, so re-running a job overwrites instead of
// duplicating.
func (s *MongoStore) SavePositions(ctx context.Context, positions []layout.Position, batchSize int) error {
	if len(positions) == 0 {
		return nil
	}
	if batchSize < 1 {
		batchSize = len(positions)
	}

	for start := 0; start < len(positions); start += batchSize {
		end := min(start+batchSize, len(positions))
		chunk := positions[start:end]

		chunkStart := time.Now()
		err := retry.RetryWithBackoff(ctx, func() error {
			opCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			models := make([]mongo.WriteModel, 0, len(chunk))
			for _, p := range chunk {
				models = append(models, mongo.NewReplaceOneModel().
					SetFilter(bson.D{{Key: "vertex_id", Value: p.VertexID}}).
					SetReplacement(p).
					SetUpsert(true))
			}

			_, err := s.positions.BulkWrite(opCtx, models, options.BulkWrite().SetOrdered(false))
			if err != nil {
				return &retry.RetryableError{Err: err}
			}
			return nil
		})
		observability.Store().OnBatchSaved(ctx, len(chunk), time.Since(chunkStart), err)
		if err != nil {
			return errors.Wrap(errors.ErrCodeDataSource, err,
				"saving position batch %d..%d", start, end)
		}

		s.logger.Debug("position batch saved", "from", start, "to", end, "total", len(positions))
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Disconnect(opCtx)
}

// Ensure MongoStore implements both store interfaces.
var (
	_ EdgeSource   = (*MongoStore)(nil)
	_ PositionSink = (*MongoStore)(nil)
)
