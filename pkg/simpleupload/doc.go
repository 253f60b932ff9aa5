// Package simpleupload brokers multipart uploads of large media files to an
// S3-compatible object store while keeping a relational upload record
// consistent with object-store state across independent HTTP calls.
//
// The package is a library: construct a Service with New and the functional
// options (WithRepository, WithObjectStore, WithURLCache, WithCleanupQueue)
// and mount the handlers from the api subpackage, or call the Service
// directly. Storage backends, repositories and caches are pluggable through
// the interfaces in interfaces.go; production implementations live in the
// storage/s3, repo/postgres and urlcache/redis subpackages, with in-memory
// counterparts for tests and local development.
//
// Every upload is tracked by a single UploadRecord row. The record moves
// strictly forward: pending at initiate, finished at complete, gone after
// abort or deletion. Transitions are conditional single-statement writes
// keyed on the current status and upload session, so racing complete/abort
// calls resolve cleanly and client retries are idempotent. Deferred
// object-store cleanup (deletes, aborts of orphaned sessions) runs on the
// cleanup subpackage's retrying worker pool, never on the request path.
package simpleupload
