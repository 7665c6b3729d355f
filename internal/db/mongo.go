package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/richd0tcom/sensordocs/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const CollectionName = "sensorData"

// MongoSensorStore keeps one document per device, type and day in the
// sensorData collection, with a version field for optimistic locking.
type MongoSensorStore struct {
	collection *mongo.Collection
}

type mongoSensorID struct {
	Device string    `bson:"device"`
	Date   time.Time `bson:"date"`
	Type   string    `bson:"type"`
}

type mongoSummary struct {
	Average map[string]float64 `bson:"avg"`
}

type mongoSensorRecord struct {
	ID       mongoSensorID                 `bson:"_id"`
	Detailed map[string]map[string]float64 `bson:"detailed"`
	Summary  mongoSummary                  `bson:"summary"`
	Version  int64                         `bson:"version"`
}

func NewMongoConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to MongoDB: %w", domain.ErrStoreUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: failed to ping MongoDB: %w", domain.ErrStoreUnavailable, err)
	}
	return client, nil
}

func DisconnectMongo(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// CheckConnection lists the databases visible to client.
func CheckConnection(ctx context.Context, client *mongo.Client) ([]string, error) {
	names, err := client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: list databases: %w", domain.ErrStoreUnavailable, err)
	}
	return names, nil
}

func NewMongoSensorStore(client *mongo.Client, database string) *MongoSensorStore {
	return &MongoSensorStore{
		collection: client.Database(database).Collection(CollectionName),
	}
}

func (m *MongoSensorStore) Get(ctx context.Context, id domain.DocumentID) (*domain.SensorDocument, error) {
	var rec mongoSensorRecord
	err := m.collection.FindOne(ctx, bson.D{{Key: "_id", Value: toMongoID(id)}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %w", domain.ErrStoreUnavailable, id, err)
	}

	doc, err := fromMongoRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &doc, nil
}

func (m *MongoSensorStore) Insert(ctx context.Context, doc domain.SensorDocument) (domain.CommitResult, error) {
	rec := toMongoRecord(doc)
	rec.Version = 1

	if _, err := m.collection.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.CommitConflict, nil
		}
		return domain.CommitFatal, fmt.Errorf("%w: insert %s: %w", domain.ErrStoreUnavailable, doc.ID, err)
	}
	return domain.CommitWritten, nil
}

// Save replaces the stored document only if its version still equals expectedVersion.
func (m *MongoSensorStore) Save(ctx context.Context, doc domain.SensorDocument, expectedVersion int64) (domain.CommitResult, error) {
	rec := toMongoRecord(doc)
	rec.Version = expectedVersion + 1

	filter := versionFilter(rec.ID, expectedVersion)
	res, err := m.collection.ReplaceOne(ctx, filter, rec)
	if err != nil {
		return domain.CommitFatal, fmt.Errorf("%w: save %s: %w", domain.ErrStoreUnavailable, doc.ID, err)
	}
	if res.MatchedCount == 0 {
		return domain.CommitConflict, nil
	}
	return domain.CommitWritten, nil
}

// versionFilter matches id at expectedVersion. Documents written without a
// version field decode as version 0 and must match it too.
func versionFilter(id mongoSensorID, expectedVersion int64) bson.D {
	if expectedVersion == 0 {
		return bson.D{
			{Key: "_id", Value: id},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "version", Value: int64(0)}},
				bson.D{{Key: "version", Value: bson.D{{Key: "$exists", Value: false}}}},
			}},
		}
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "version", Value: expectedVersion},
	}
}

func toMongoID(id domain.DocumentID) mongoSensorID {
	return mongoSensorID{
		Device: id.Device,
		Date:   id.Date.Time(),
		Type:   id.Type,
	}
}

func toMongoRecord(doc domain.SensorDocument) mongoSensorRecord {
	detailed := make(map[string]map[string]float64, len(doc.Detailed))
	for hour, minutes := range doc.Detailed {
		m := make(map[string]float64, len(minutes))
		for minute, v := range minutes {
			m[strconv.Itoa(minute)] = v
		}
		detailed[strconv.Itoa(hour)] = m
	}

	avg := make(map[string]float64, len(doc.Summary))
	for hour, v := range doc.Summary {
		avg[strconv.Itoa(hour)] = v
	}

	return mongoSensorRecord{
		ID:       toMongoID(doc.ID),
		Detailed: detailed,
		Summary:  mongoSummary{Average: avg},
		Version:  doc.Version,
	}
}

func fromMongoRecord(rec mongoSensorRecord) (domain.SensorDocument, error) {
	doc := domain.SensorDocument{
		ID: domain.DocumentID{
			Device: rec.ID.Device,
			Type:   rec.ID.Type,
			Date:   domain.DateFromTime(rec.ID.Date),
		},
		Detailed: make(domain.Detailed, len(rec.Detailed)),
		Summary:  make(domain.Summary, len(rec.Summary.Average)),
		Version:  rec.Version,
	}

	for hk, minutes := range rec.Detailed {
		hour, err := strconv.Atoi(hk)
		if err != nil {
			return domain.SensorDocument{}, fmt.Errorf("invalid hour key %q: %w", hk, err)
		}
		m := make(map[int]float64, len(minutes))
		for mk, v := range minutes {
			minute, err := strconv.Atoi(mk)
			if err != nil {
				return domain.SensorDocument{}, fmt.Errorf("invalid minute key %q: %w", mk, err)
			}
			m[minute] = v
		}
		doc.Detailed[hour] = m
	}

	for hk, v := range rec.Summary.Average {
		hour, err := strconv.Atoi(hk)
		if err != nil {
			return domain.SensorDocument{}, fmt.Errorf("invalid summary hour %q: %w", hk, err)
		}
		doc.Summary[hour] = v
	}
	return doc, nil
}
