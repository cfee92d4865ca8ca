package publish

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// mongoTarget publishes one BSON document per block into a collection.
type mongoTarget struct {
	name       string
	client     *mongo.Client
	dbName     string
	collection string
	logger     *zap.Logger
}

// buildMongoURI returns the connection URI and the database name for cfg.
// A host that is already a mongodb:// or mongodb+srv:// URI is used as is,
// with <password> placeholders filled in.
func buildMongoURI(cfg TargetConfig) (uri, dbName string) {
	dbName = cfg.Database
	if strings.HasPrefix(cfg.Host, "mongodb+srv://") || strings.HasPrefix(cfg.Host, "mongodb://") {
		uri = cfg.Host
		if cfg.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", cfg.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", cfg.Password)
		}
		if dbName == "" {
			if u, err := url.Parse(uri); err == nil {
				dbName = strings.TrimPrefix(u.Path, "/")
			}
		}
	} else {
		port := cfg.Port
		if port == 0 {
			port = 27017
		}
		host := fmt.Sprintf("%s:%d", cfg.Host, port)
		if cfg.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s", url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password), host)
		} else {
			uri = "mongodb://" + host
		}
		if len(cfg.Options) > 0 {
			keys := make([]string, 0, len(cfg.Options))
			for k := range cfg.Options {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			params := make([]string, 0, len(keys))
			for _, k := range keys {
				params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(cfg.Options[k]))
			}
			uri += "/?" + strings.Join(params, "&")
		}
	}
	if dbName == "" {
		dbName = "hmdoc"
	}
	return uri, dbName
}

func newMongoTarget(cfg TargetConfig, logger *zap.Logger) (*mongoTarget, error) {
	uri, dbName := buildMongoURI(cfg)
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	logger.Info("mongo_target_ready", zap.String("database", dbName), zap.String("collection", cfg.table()))
	return &mongoTarget{
		name:       cfg.Name,
		client:     client,
		dbName:     dbName,
		collection: cfg.table(),
		logger:     logger,
	}, nil
}

func (m *mongoTarget) Name() string { return m.name }

func (m *mongoTarget) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// blockDocuments converts a snapshot to the BSON documents stored per block.
func blockDocuments(snap Snapshot) []any {
	docs := make([]any, 0, len(snap.Blocks))
	for _, b := range snap.Blocks {
		anns := make(bson.A, 0, len(b.Annotations))
		for _, a := range b.Annotations {
			ann := bson.M{"type": a.Type, "starts": a.Starts, "ends": a.Ends}
			if a.Ref != "" {
				ann["ref"] = a.Ref
			}
			if len(a.Attributes) > 0 {
				ann["attributes"] = a.Attributes
			}
			anns = append(anns, ann)
		}
		docs = append(docs, bson.M{
			"_id":            snap.Document.ID + "/" + b.ID,
			"document_id":    snap.Document.ID,
			"document_title": snap.Document.Title,
			"block_id":       b.ID,
			"parent_id":      b.ParentID,
			"sort_order":     b.Order,
			"type":           b.Type,
			"text":           b.Text,
			"ref":            b.Ref,
			"attributes":     b.Attributes,
			"annotations":    anns,
			"published_at":   snap.PublishedAt,
		})
	}
	return docs
}

// replaceModels upserts each block document by its _id.
func replaceModels(docs []any) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": d.(bson.M)["_id"]}).
			SetReplacement(d).
			SetUpsert(true))
	}
	return models
}

// staleFilter matches the document's rows that are not in the current snapshot.
func staleFilter(docID string, docs []any) bson.M {
	ids := make(bson.A, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.(bson.M)["_id"])
	}
	return bson.M{"document_id": docID, "_id": bson.M{"$nin": ids}}
}

// Publish upserts the current blocks, then removes rows of deleted blocks.
func (m *mongoTarget) Publish(ctx context.Context, snap Snapshot) (int, error) {
	coll := m.client.Database(m.dbName).Collection(m.collection)

	docs := blockDocuments(snap)
	if len(docs) > 0 {
		if _, err := coll.BulkWrite(ctx, replaceModels(docs), options.BulkWrite().SetOrdered(false)); err != nil {
			return 0, fmt.Errorf("upsert blocks: %w", err)
		}
	}
	res, err := coll.DeleteMany(ctx, staleFilter(snap.Document.ID, docs))
	if err != nil {
		return 0, fmt.Errorf("remove stale blocks: %w", err)
	}
	m.logger.Debug("document_published",
		zap.String("document", snap.Document.ID),
		zap.Int("blocks", len(docs)),
		zap.Int64("removed", res.DeletedCount),
	)
	return len(docs), nil
}

func (m *mongoTarget) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
