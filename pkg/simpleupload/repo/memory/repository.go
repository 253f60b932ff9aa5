// Package memory implements simpleupload.Repository with in-process maps.
// State transitions use the same compare-and-set semantics as the postgres
// repository, evaluated under one lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
)

// Repository is an in-memory upload record repository.
type Repository struct {
	mu         sync.RWMutex
	records    map[uuid.UUID]*simpleupload.UploadRecord
	byUploadID map[string]uuid.UUID
	byKey      map[string]uuid.UUID
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		records:    make(map[uuid.UUID]*simpleupload.UploadRecord),
		byUploadID: make(map[string]uuid.UUID),
		byKey:      make(map[string]uuid.UUID),
	}
}

func (r *Repository) CreateUploadRecord(ctx context.Context, record *simpleupload.UploadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recordCopy := *record
	r.records[record.ID] = &recordCopy
	r.byKey[record.ObjectKey] = record.ID
	if record.UploadID != nil {
		r.byUploadID[*record.UploadID] = record.ID
	}

	return nil
}

func (r *Repository) GetByUploadID(ctx context.Context, uploadID string) (*simpleupload.UploadRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUploadID[uploadID]
	if !ok {
		return nil, simpleupload.ErrUploadNotFound
	}

	recordCopy := *r.records[id]
	return &recordCopy, nil
}

func (r *Repository) GetByObjectKey(ctx context.Context, objectKey string) (*simpleupload.UploadRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[objectKey]
	if !ok {
		return nil, simpleupload.ErrUploadNotFound
	}

	recordCopy := *r.records[id]
	return &recordCopy, nil
}

func (r *Repository) FinalizeUpload(ctx context.Context, id uuid.UUID, uploadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || record.UploadStatus != simpleupload.UploadStatusPending ||
		record.UploadID == nil || *record.UploadID != uploadID {
		return simpleupload.ErrUploadNotFound
	}

	delete(r.byUploadID, uploadID)
	record.UploadID = nil
	record.UploadStatus = simpleupload.UploadStatusFinished
	record.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *Repository) DeletePending(ctx context.Context, id uuid.UUID, uploadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || record.UploadStatus != simpleupload.UploadStatusPending ||
		record.UploadID == nil || *record.UploadID != uploadID {
		return simpleupload.ErrUploadNotFound
	}

	r.remove(record)
	return nil
}

func (r *Repository) DeleteByObjectKey(ctx context.Context, ownerID uuid.UUID, objectKey string) (*simpleupload.UploadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[objectKey]
	if !ok {
		return nil, simpleupload.ErrUploadNotFound
	}

	record := r.records[id]
	if record.OwnerID != ownerID {
		return nil, simpleupload.ErrUploadNotFound
	}

	r.remove(record)
	recordCopy := *record
	return &recordCopy, nil
}

func (r *Repository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) ([]*simpleupload.UploadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []*simpleupload.UploadRecord
	for _, record := range r.records {
		if record.OwnerID != ownerID {
			continue
		}
		r.remove(record)
		recordCopy := *record
		deleted = append(deleted, &recordCopy)
	}

	return deleted, nil
}

// remove unindexes and deletes a record. Caller holds the write lock.
func (r *Repository) remove(record *simpleupload.UploadRecord) {
	delete(r.records, record.ID)
	delete(r.byKey, record.ObjectKey)
	if record.UploadID != nil {
		delete(r.byUploadID, *record.UploadID)
	}
}
