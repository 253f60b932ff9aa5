package simpleupload

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the capability wrapper around an S3-compatible object
// store, exposing exactly the primitives the upload service needs. Every
// call is live network I/O; failures surface as *StorageError wrapping
// ErrStoreUnavailable or ErrObjectMissing.
type ObjectStore interface {
	// CreateMultipartUpload opens a multipart session and returns its id.
	CreateMultipartUpload(ctx context.Context, objectKey, contentType string) (string, error)

	// PresignUploadPart returns a presigned URL for uploading one part.
	// partNumber must be in [MinPartNumber, MaxPartNumber].
	PresignUploadPart(ctx context.Context, objectKey, uploadID string, partNumber int32, expires time.Duration) (string, error)

	// CompleteMultipartUpload assembles the uploaded parts in part-number
	// order. Part ordering and size minimums are enforced by the store.
	CompleteMultipartUpload(ctx context.Context, objectKey, uploadID string, parts []CompletedPart) error

	// AbortMultipartUpload aborts an open session. Aborting an already-gone
	// session is success.
	AbortMultipartUpload(ctx context.Context, objectKey, uploadID string) error

	// PresignDownload returns a time-limited GET URL for an object.
	PresignDownload(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// Upload streams an object directly through the server, for files small
	// enough that a multipart session is not worth the round trips.
	Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error

	// Delete removes one object. Deleting a missing object is success.
	Delete(ctx context.Context, objectKey string) error

	// DeleteBatch removes several objects in one store call.
	DeleteBatch(ctx context.Context, objectKeys []string) error

	// Head verifies an object exists, returning ErrObjectMissing otherwise.
	Head(ctx context.Context, objectKey string) error
}

// Repository persists upload records. Implementations must make every state
// transition a single conditional write keyed on the current status and
// upload session (never read-then-write), so that racing complete/abort
// calls cannot both succeed.
type Repository interface {
	// CreateUploadRecord inserts a new pending record.
	CreateUploadRecord(ctx context.Context, record *UploadRecord) error

	// GetByUploadID loads the record holding an open session, or
	// ErrUploadNotFound.
	GetByUploadID(ctx context.Context, uploadID string) (*UploadRecord, error)

	// GetByObjectKey loads a record by its object key, or ErrUploadNotFound.
	GetByObjectKey(ctx context.Context, objectKey string) (*UploadRecord, error)

	// FinalizeUpload flips a record to finished and clears its upload id,
	// conditional on it still being pending with the given session. Zero
	// rows matched maps to ErrUploadNotFound.
	FinalizeUpload(ctx context.Context, id uuid.UUID, uploadID string) error

	// DeletePending removes a record, conditional on it still being pending
	// with the given session. Zero rows matched maps to ErrUploadNotFound.
	DeletePending(ctx context.Context, id uuid.UUID, uploadID string) error

	// DeleteByObjectKey removes an owner's record by object key and returns
	// the deleted row so the caller can schedule compensating cleanup.
	DeleteByObjectKey(ctx context.Context, ownerID uuid.UUID, objectKey string) (*UploadRecord, error)

	// DeleteByOwner removes all of an owner's records and returns the
	// deleted rows.
	DeleteByOwner(ctx context.Context, ownerID uuid.UUID) ([]*UploadRecord, error)
}

// URLCache memoizes presigned download URLs. Entries are set with a TTL
// equal to the URL's own signed expiry so the cache can never outlive a
// valid URL. A failing cache degrades to misses, never to errors.
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, url string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Validator checks an original filename before any store or database call.
// Implementations live in the validate subpackage.
type Validator interface {
	Validate(filename string) error
}

// CleanupTaskKind discriminates the deferred operations the cleanup worker
// consumes.
type CleanupTaskKind string

// Cleanup task kinds.
const (
	TaskDeleteObject   CleanupTaskKind = "delete_object"
	TaskDeleteObjects  CleanupTaskKind = "delete_objects"
	TaskAbortMultipart CleanupTaskKind = "abort_multipart_upload"
)

// CleanupTask is one deferred object-store operation. Attempt counts prior
// deliveries; the worker re-enqueues transient failures with backoff.
type CleanupTask struct {
	Kind     CleanupTaskKind
	Key      string
	Keys     []string
	UploadID string
	CacheKey string
	Attempt  int
}

// CleanupQueue accepts deferred cleanup tasks, fire-and-forget from the
// request path. The cleanup subpackage provides the consuming worker pool.
type CleanupQueue interface {
	Enqueue(task CleanupTask)
}
