package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	upsertBatchSize = 256
	scrollPageSize  = 512
)

var logger *logger_i.Logger
var quadrantInstance *qdrant.Client
var once sync.Once
var initErr error

// ClientHolder persists index snapshots into one qdrant collection. Every
// save replaces the collection, point ids are the entry ordinals.
type ClientHolder struct {
	QObj           *qdrant.Client
	collectionName string
}

func GetQuadrantClient(ctx context.Context, cfg config.QdrantConfig, collectionName string) (*ClientHolder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		quadrantInstance, initErr = newClient(cfg)
		if initErr == nil {
			go closeQdrant(ctx, quadrantInstance)
		}
	})

	if quadrantInstance == nil {
		return nil, fmt.Errorf("qdrant unavailable: %w", initErr)
	}
	if collectionName == "" {
		return nil, errors.New("empty collection name")
	}
	return &ClientHolder{
		QObj:           quadrantInstance,
		collectionName: collectionName,
	}, nil
}

func newClient(cfg config.QdrantConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil, err
	}
	return client, nil
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) Save(ctx context.Context, snap vectorDB.Snapshot) error {
	if err := db.Clear(ctx); err != nil {
		return err
	}

	err := db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: db.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(snap.Dimension),
			Distance: distanceFor(snap.Metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}

	points, err := toPoints(snap)
	if err != nil {
		return err
	}
	for i := 0; i < len(points); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(points))
		_, err = db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: db.collectionName,
			Points:         points[i:end],
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert failed: %w", err)
		}
	}

	logger.Debug("snapshot saved", "collection", db.collectionName, "points", len(points))
	return nil
}

func (db *ClientHolder) Load(ctx context.Context) (vectorDB.Snapshot, error) {
	var snap vectorDB.Snapshot

	exists, err := db.QObj.CollectionExists(ctx, db.collectionName)
	if err != nil {
		return snap, fmt.Errorf("qdrant collection check: %w", err)
	}
	if !exists {
		return snap, vectorDB.ErrNoSnapshot
	}

	info, err := db.QObj.GetCollectionInfo(ctx, db.collectionName)
	if err != nil {
		return snap, fmt.Errorf("qdrant collection info: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()

	var points []*qdrant.RetrievedPoint
	var offset *qdrant.PointId
	for {
		page, next, err := db.QObj.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: db.collectionName,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return snap, fmt.Errorf("qdrant scroll: %w", err)
		}
		points = append(points, page...)
		if next == nil {
			break
		}
		offset = next
	}

	snap = fromPoints(points, metricFor(params.GetDistance()), int(params.GetSize()))
	logger.Info("snapshot loaded", "collection", db.collectionName, "entries", len(snap.Entries))
	return snap, nil
}

func (db *ClientHolder) Clear(ctx context.Context) error {
	err := db.QObj.DeleteCollection(ctx, db.collectionName)
	if err != nil && status.Code(err) != codes.NotFound {
		exists, checkErr := db.QObj.CollectionExists(ctx, db.collectionName)
		if checkErr == nil && !exists {
			return nil
		}
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return nil
}
