package simpleupload

import (
	"io"

	"github.com/google/uuid"
)

// InitiateUploadRequest contains parameters for opening a multipart upload.
type InitiateUploadRequest struct {
	OwnerID     uuid.UUID
	MediaType   MediaType
	FileName    string
	Title       string
	Description string
}

// InitiateUploadResult is returned by InitiateUpload.
type InitiateUploadResult struct {
	UploadID  string
	ObjectKey string
	Record    *UploadRecord
}

// PartURLRequest contains parameters for presigning one part upload.
type PartURLRequest struct {
	OwnerID    uuid.UUID
	ObjectKey  string
	UploadID   string
	PartNumber int32
}

// CompleteUploadRequest contains parameters for completing an upload.
type CompleteUploadRequest struct {
	OwnerID   uuid.UUID
	ObjectKey string
	UploadID  string
	Parts     []CompletedPart
}

// AbortUploadRequest contains parameters for aborting an upload.
type AbortUploadRequest struct {
	OwnerID   uuid.UUID
	ObjectKey string
	UploadID  string
}

// DirectUploadRequest contains parameters for the server-side streamed
// upload path used for small files such as avatars.
type DirectUploadRequest struct {
	OwnerID     uuid.UUID
	MediaType   MediaType
	FileName    string
	Title       string
	Description string
	Body        io.Reader
}
