package simpleupload

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MediaType identifies the kind of media an upload carries. It selects the
// object-key prefix and the filename allow-list.
type MediaType string

// Media type constants (typed).
const (
	MediaTypeVideo  MediaType = "video"
	MediaTypeAvatar MediaType = "avatar"
)

// KeyPrefix returns the object-key prefix for the media type.
func (m MediaType) KeyPrefix() string { return string(m) }

// IsValid reports whether the media type is one of the known constants.
func (m MediaType) IsValid() bool {
	return m == MediaTypeVideo || m == MediaTypeAvatar
}

// UploadStatus is the domain type for upload lifecycle states.
type UploadStatus string

// Upload status constants (typed).
const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusFinished UploadStatus = "finished"
)

// Multipart part numbers accepted by S3-compatible stores.
const (
	MinPartNumber int32 = 1
	MaxPartNumber int32 = 10000
)

// Default presigned URL lifetimes.
const (
	DefaultPartURLExpiry     = 120 * time.Second
	DefaultDownloadURLExpiry = 3600 * time.Second
)

// UploadRecord is the relational row tracking one uploadable entity. It is
// the only durable artifact of the pipeline; there is no separate
// upload-session table.
//
// Exactly one of {UploadID set, upload finalized} holds once an upload has
// begun: UploadID is non-nil only while the multipart session is open, and
// is cleared in the same conditional write that flips UploadStatus to
// finished.
type UploadRecord struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"owner_id"`
	MediaType    MediaType    `json:"media_type"`
	FileName     string       `json:"file_name"`
	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
	ObjectKey    string       `json:"object_key"`
	UploadID     *string      `json:"upload_id,omitempty"`
	UploadStatus UploadStatus `json:"upload_status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CompletedPart is one entry of the ordered part list a client submits when
// completing a multipart upload. Field names follow the S3 wire format.
type CompletedPart struct {
	PartNumber int32  `json:"PartNumber"`
	ETag       string `json:"ETag"`
}

// DownloadURLCacheKey returns the cache key under which the presigned
// download URL for an object key is memoized. The cleanup worker uses the
// same derivation to evict entries when the object is deleted.
func DownloadURLCacheKey(objectKey string) string {
	return fmt.Sprintf("download_url:%s", objectKey)
}
