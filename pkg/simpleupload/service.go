package simpleupload

import (
	"context"

	"github.com/google/uuid"
)

// Service is the upload orchestration state machine. Records move strictly
// forward: no record -> pending -> finished or deleted. Any operation
// against a record that is already finished (or never existed, or belongs
// to another owner) fails with ErrUploadNotFound.
type Service interface {
	// InitiateUpload validates the filename, opens a multipart session on
	// the object store and persists a pending record. The record is only
	// created after the store call succeeds, so a store failure leaves no
	// orphan row.
	InitiateUpload(ctx context.Context, req InitiateUploadRequest) (*InitiateUploadResult, error)

	// GeneratePartURL presigns an upload URL for one part of an open
	// session. Stateless and idempotent; clients may call it concurrently
	// for different part numbers.
	GeneratePartURL(ctx context.Context, req PartURLRequest) (string, error)

	// CompleteUpload assembles the uploaded parts and finalizes the record.
	// On a store failure the record stays pending and the call is safely
	// retryable with the same upload id.
	CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*UploadRecord, error)

	// AbortUpload aborts an open session and deletes its record, leaving no
	// trace in store or database. Aborting an already-aborted upload is
	// success; aborting a finished one is ErrUploadNotFound.
	AbortUpload(ctx context.Context, req AbortUploadRequest) error

	// GetDownloadURL returns a presigned download URL for a finished
	// upload, memoized in the cache for the URL's own lifetime.
	GetDownloadURL(ctx context.Context, objectKey string) (string, error)

	// UploadDirect streams a small file through the server and creates a
	// finished record in one call, bypassing the multipart protocol.
	UploadDirect(ctx context.Context, req DirectUploadRequest) (*UploadRecord, error)

	// DeleteMedia deletes an owner's record and schedules the compensating
	// object-store cleanup (object delete, or session abort if a pending
	// upload raced the deletion) on the cleanup queue.
	DeleteMedia(ctx context.Context, ownerID uuid.UUID, objectKey string) error

	// DeleteOwnerMedia deletes all of an owner's records, scheduling one
	// batched object delete for the finished ones. Used when an owning
	// aggregate (a channel with many videos) is deleted.
	DeleteOwnerMedia(ctx context.Context, ownerID uuid.UUID) error
}
