package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/engram-ai/engram/src/memory/model"
)

// MongoStore persists memory records in a MongoDB collection, with version
// snapshots in a sibling collection.
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	versions *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		collection = "memories"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		records:  db.Collection(collection),
		versions: db.Collection(collection + "_versions"),
	}, nil
}

type mongoRecord struct {
	ID               string         `bson:"_id"`
	OwnerID          string         `bson:"owner_id"`
	Content          string         `bson:"content"`
	Type             string         `bson:"memory_type"`
	Category         string         `bson:"category,omitempty"`
	Tags             []string       `bson:"tags,omitempty"`
	Embedding        []float64      `bson:"embedding,omitempty"`
	EmbeddingModelID string         `bson:"embedding_model_id,omitempty"`
	Importance       float64        `bson:"importance"`
	Confidence       float64        `bson:"confidence"`
	AccessCount      int64          `bson:"access_count"`
	LastAccessedAt   *time.Time     `bson:"last_accessed_at,omitempty"`
	Source           string         `bson:"source_type"`
	SourceRef        string         `bson:"source_ref,omitempty"`
	CreatedAt        time.Time      `bson:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at"`
	Active           bool           `bson:"is_active"`
	Pinned           bool           `bson:"is_pinned"`
	Verified         bool           `bson:"is_verified"`
	NeedsResync      bool           `bson:"needs_resync"`
	Extra            map[string]any `bson:"extra,omitempty"`
}

type mongoVersion struct {
	MemoryID  string    `bson:"memory_id"`
	Version   int       `bson:"version_number"`
	Content   string    `bson:"content"`
	Reason    string    `bson:"reason,omitempty"`
	ChangedBy string    `bson:"changed_by"`
	CreatedAt time.Time `bson:"created_at"`
}

func toMongoRecord(rec model.MemoryRecord) mongoRecord {
	return mongoRecord{
		ID:               rec.ID,
		OwnerID:          rec.OwnerID,
		Content:          rec.Content,
		Type:             string(rec.Type),
		Category:         rec.Category,
		Tags:             rec.Tags,
		Embedding:        float64Embedding(rec.Embedding),
		EmbeddingModelID: rec.EmbeddingModelID,
		Importance:       rec.Importance,
		Confidence:       rec.Confidence,
		AccessCount:      rec.AccessCount,
		LastAccessedAt:   rec.LastAccessedAt,
		Source:           string(rec.Source),
		SourceRef:        rec.SourceRef,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		Active:           rec.Active,
		Pinned:           rec.Pinned,
		Verified:         rec.Verified,
		NeedsResync:      rec.NeedsResync,
		Extra:            rec.Extra,
	}
}

func (m mongoRecord) toModel() model.MemoryRecord {
	return model.MemoryRecord{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		Content:          m.Content,
		Type:             model.MemoryType(m.Type),
		Category:         m.Category,
		Tags:             m.Tags,
		Embedding:        float32Embedding(m.Embedding),
		EmbeddingModelID: m.EmbeddingModelID,
		Importance:       m.Importance,
		Confidence:       m.Confidence,
		AccessCount:      m.AccessCount,
		LastAccessedAt:   m.LastAccessedAt,
		Source:           model.SourceType(m.Source),
		SourceRef:        m.SourceRef,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Active:           m.Active,
		Pinned:           m.Pinned,
		Verified:         m.Verified,
		NeedsResync:      m.NeedsResync,
		Extra:            m.Extra,
	}
}

func float64Embedding(vec []float32) []float64 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float32Embedding(vec []float64) []float32 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}

func (ms *MongoStore) Create(ctx context.Context, rec *model.MemoryRecord) error {
	if err := prepareCreate(rec, time.Now().UTC()); err != nil {
		return err
	}
	_, err := ms.records.InsertOne(ctx, toMongoRecord(*rec))
	return err
}

func (ms *MongoStore) Get(ctx context.Context, ownerID, id string) (model.MemoryRecord, error) {
	var doc mongoRecord
	err := ms.records.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.MemoryRecord{}, ErrNotFound
		}
		return model.MemoryRecord{}, err
	}
	if doc.OwnerID != ownerID {
		return model.MemoryRecord{}, ErrUnauthorized
	}
	return doc.toModel(), nil
}

func (ms *MongoStore) Update(ctx context.Context, ownerID, id string, req UpdateRequest) (model.MemoryRecord, error) {
	rec, err := ms.Get(ctx, ownerID, id)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	if !rec.Active {
		return model.MemoryRecord{}, ErrNotFound
	}

	now := time.Now().UTC()
	prior := rec.Content
	if applyUpdate(&rec, req, now) {
		next, err := ms.nextVersion(ctx, id)
		if err != nil {
			return model.MemoryRecord{}, err
		}
		_, err = ms.versions.InsertOne(ctx, mongoVersion{
			MemoryID:  id,
			Version:   next,
			Content:   prior,
			Reason:    req.Reason,
			ChangedBy: string(req.ChangedBy),
			CreatedAt: now,
		})
		if err != nil {
			return model.MemoryRecord{}, err
		}
	}

	_, err = ms.records.ReplaceOne(ctx, bson.M{"_id": id}, toMongoRecord(rec))
	if err != nil {
		return model.MemoryRecord{}, err
	}
	return rec, nil
}

// nextVersion reads the highest version number and adds one. Not atomic on
// its own: callers must hold the per-record lock that serializes updates.
func (ms *MongoStore) nextVersion(ctx context.Context, id string) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version_number", Value: -1}})
	var latest mongoVersion
	err := ms.versions.FindOne(ctx, bson.M{"memory_id": id}, opts).Decode(&latest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 1, nil
		}
		return 0, err
	}
	return latest.Version + 1, nil
}

func (ms *MongoStore) SoftDelete(ctx context.Context, ownerID, id string) error {
	rec, err := ms.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !rec.Active {
		return ErrNotFound
	}
	_, err = ms.records.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()},
	})
	return err
}

func (ms *MongoStore) HardDelete(ctx context.Context, ownerID, id string) error {
	if _, err := ms.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := ms.versions.DeleteMany(ctx, bson.M{"memory_id": id}); err != nil {
		return err
	}
	_, err := ms.records.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (ms *MongoStore) List(ctx context.Context, ownerID string, filter ListFilter, order Order) ([]model.MemoryRecord, error) {
	query := bson.M{"owner_id": ownerID, "is_active": true}
	if filter.Type != "" {
		query["memory_type"] = string(filter.Type)
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Source != "" {
		query["source_type"] = string(filter.Source)
	}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.Pinned != nil {
		query["is_pinned"] = *filter.Pinned
	}
	if filter.Verified != nil {
		query["is_verified"] = *filter.Verified
	}
	if filter.NeedsResync != nil {
		query["needs_resync"] = *filter.NeedsResync
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	switch order {
	case OrderUpdatedDesc:
		sort = bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}
	case OrderImportanceDesc:
		sort = bson.D{{Key: "importance", Value: -1}, {Key: "_id", Value: 1}}
	}
	opts := options.Find().SetSort(sort)
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := ms.records.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []model.MemoryRecord
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, doc.toModel())
	}
	return records, cursor.Err()
}

func (ms *MongoStore) Pinned(ctx context.Context, ownerID string) ([]model.MemoryRecord, error) {
	pinned := true
	return ms.List(ctx, ownerID, ListFilter{Pinned: &pinned}, OrderImportanceDesc)
}

func (ms *MongoStore) Versions(ctx context.Context, ownerID, id string) ([]model.MemoryVersion, error) {
	if _, err := ms.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "version_number", Value: 1}})
	cursor, err := ms.versions.Find(ctx, bson.M{"memory_id": id}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var versions []model.MemoryVersion
	for cursor.Next(ctx) {
		var doc mongoVersion
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		versions = append(versions, model.MemoryVersion{
			MemoryID:  doc.MemoryID,
			Version:   doc.Version,
			Content:   doc.Content,
			Reason:    doc.Reason,
			ChangedBy: model.ChangedBy(doc.ChangedBy),
			CreatedAt: doc.CreatedAt,
		})
	}
	return versions, cursor.Err()
}

func (ms *MongoStore) Touch(ctx context.Context, ownerID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ms.records.UpdateMany(ctx,
		bson.M{"owner_id": ownerID, "is_active": true, "_id": bson.M{"$in": ids}},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed_at": at},
		})
	return err
}

func (ms *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
