package repository

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizwrap/internal/model"
)

// RecordRepo stores finished session records
type RecordRepo interface {
	// Append stores a record. Appending an ID that already exists is a no-op.
	Append(ctx context.Context, rec *model.SessionRecord) error
	// List returns all records in insertion order
	List(ctx context.Context) ([]model.SessionRecord, error)
	ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error)
	// Clear removes every record and returns how many were removed
	Clear(ctx context.Context) (int64, error)
}

type recordRepo struct {
	coll *mongo.Collection
}

// NewRecordRepo creates a MongoDB-backed record repository
func NewRecordRepo(db *mongo.Database) RecordRepo {
	return &recordRepo{
		coll: db.Collection("records"),
	}
}

func (r *recordRepo) Append(ctx context.Context, rec *model.SessionRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, opts)
	return errors.Wrapf(err, "append record %s", rec.ID)
}

func (r *recordRepo) List(ctx context.Context) ([]model.SessionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	defer cursor.Close(ctx)

	records := []model.SessionRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}
	return records, nil
}

func (r *recordRepo) ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := r.coll.FindOne(ctx, bson.M{"identity.rollNumber": rollNumber}, opts).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "lookup roll number %s", rollNumber)
	}
	return true, nil
}

func (r *recordRepo) Clear(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "clear records")
	}
	return res.DeletedCount, nil
}

type memoryRecordRepo struct {
	mu      sync.RWMutex
	records []model.SessionRecord
	ids     map[string]struct{}
}

// NewMemoryRecordRepo creates an in-process record repository. Contents are
// lost when the process exits.
func NewMemoryRecordRepo() RecordRepo {
	return &memoryRecordRepo{ids: make(map[string]struct{})}
}

func (r *memoryRecordRepo) Append(ctx context.Context, rec *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[rec.ID]; ok {
		return nil
	}
	r.ids[rec.ID] = struct{}{}
	r.records = append(r.records, *rec)
	return nil
}

func (r *memoryRecordRepo) List(ctx context.Context) ([]model.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.SessionRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *memoryRecordRepo) ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Identity.RollNumber == rollNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRecordRepo) Clear(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.records))
	r.records = nil
	r.ids = make(map[string]struct{})
	return n, nil
}
