package patient

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// docStore reads the document store: a patients collection plus one
// collection per category, every document carrying subject_id.
type docStore struct {
	db *mongo.Database
}

func NewDocStore(db *mongo.Database) Store {
	return &docStore{db: db}
}

func (s *docStore) Backend() string { return "mongo" }

var withoutID = bson.D{{Key: "_id", Value: 0}}

func (s *docStore) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "subject_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetProjection(withoutID)

	cursor, err := s.db.Collection(PatientsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	var patients []Patient
	if err := cursor.All(ctx, &patients); err != nil {
		return nil, fmt.Errorf("decode patients: %w", err)
	}
	return patients, nil
}

func (s *docStore) CountPatients(ctx context.Context) (int, error) {
	n, err := s.db.Collection(PatientsCollection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return int(n), nil
}

func (s *docStore) GetPatient(ctx context.Context, subjectID int64) (*Patient, error) {
	var p Patient
	err := s.db.Collection(PatientsCollection).
		FindOne(ctx, bson.D{{Key: "subject_id", Value: subjectID}}, options.FindOne().SetProjection(withoutID)).
		Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", subjectID, err)
	}
	return &p, nil
}

// FetchCategory reads documents in insertion order. Chunked collections are
// flattened to their events.
func (s *docStore) FetchCategory(ctx context.Context, cat Category, subjectID int64) ([]Row, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(withoutID)

	cursor, err := s.db.Collection(cat.Name).Find(ctx, bson.D{{Key: "subject_id", Value: subjectID}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	rows := toRows(docs)
	if cat.Chunked {
		return flattenChunks(rows), nil
	}
	return rows, nil
}
