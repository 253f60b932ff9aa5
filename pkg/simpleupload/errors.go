package simpleupload

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidFilename indicates a missing or empty filename.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrUnsupportedFormat indicates a filename extension outside the
	// allow-list for the media type.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidPartNumber indicates a part number outside [1, 10000].
	ErrInvalidPartNumber = errors.New("part number out of range")

	// ErrUploadNotFound indicates an unknown upload session, a record owned
	// by someone else, or a record already finalized. The three cases share
	// one sentinel so that callers cannot probe other owners' records.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrObjectMissing indicates the object does not exist in the store,
	// e.g. complete was called before all parts were actually uploaded.
	ErrObjectMissing = errors.New("object not found in store")

	// ErrStoreUnavailable indicates a network, permission or store-side
	// failure talking to the object store.
	ErrStoreUnavailable = errors.New("object store unavailable")
)

// UploadError wraps a failure of an upload state transition with enough
// context (key, upload session) to support manual reconciliation.
type UploadError struct {
	Key      string
	UploadID string
	Op       string
	Err      error
}

func (e *UploadError) Error() string {
	if e.UploadID == "" {
		return fmt.Sprintf("upload operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("upload operation %s failed for key %s (upload %s): %v", e.Op, e.Key, e.UploadID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of a single object-store call.
type StorageError struct {
	Bucket string
	Key    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s in bucket %s: %v", e.Op, e.Key, e.Bucket, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
