// Package api exposes the upload pipeline over HTTP. One MediaHandler is
// mounted per media type (videos, avatars); the contract shape is identical,
// only the filename allow-list and key prefix differ. Authentication is the
// upstream gateway's concern; handlers trust the owner_id carried in the
// request body.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
)

// maxDirectUploadMemory bounds the in-memory portion of parsed multipart
// forms on the direct upload path.
const maxDirectUploadMemory = 32 << 20

// ErrorResponse is the stable error body: {"detail": "..."}.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MediaHandler handles HTTP requests for one media type.
type MediaHandler struct {
	service   simpleupload.Service
	mediaType simpleupload.MediaType
}

// NewMediaHandler creates a handler bound to a media type.
func NewMediaHandler(service simpleupload.Service, mediaType simpleupload.MediaType) *MediaHandler {
	return &MediaHandler{
		service:   service,
		mediaType: mediaType,
	}
}

// Routes returns the routes for the media type.
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload/create", h.CreateUpload)
	r.Post("/upload/url", h.GeneratePartURL)
	r.Post("/upload/complete", h.CompleteUpload)
	r.Post("/upload/abort", h.AbortUpload)
	r.Post("/upload/direct", h.DirectUpload)
	r.Post("/download/url", h.DownloadURL)
	r.Post("/delete", h.DeleteMedia)

	return r
}

// CreateUploadRequest is the request body for initiating an upload.
type CreateUploadRequest struct {
	OwnerID     string `json:"owner_id"`
	FileName    string `json:"filename"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateUploadResponse is the response body for a created upload.
type CreateUploadResponse struct {
	UploadID string `json:"upload_id"`
	Key      string `json:"key"`
}

// CreateUpload initiates a multipart upload.
func (h *MediaHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req CreateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	ownerID, ok := h.parseOwnerID(w, r, req.OwnerID)
	if !ok {
		return
	}

	result, err := h.service.InitiateUpload(r.Context(), simpleupload.InitiateUploadRequest{
		OwnerID:     ownerID,
		MediaType:   h.mediaType,
		FileName:    req.FileName,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, "initiate upload", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CreateUploadResponse{
		UploadID: result.UploadID,
		Key:      result.ObjectKey,
	})
}

// PartURLRequest is the request body for presigning one part upload.
type PartURLRequest struct {
	OwnerID    string `json:"owner_id"`
	Key        string `json:"key"`
	UploadID   string `json:"upload_id"`
	PartNumber int32  `json:"part_number"`
}

// PartURLResponse is the response body for a presigned part URL.
type PartURLResponse struct {
	UploadURL string `json:"upload_url"`
}

// GeneratePartURL presigns an upload URL for one part.
func (h *MediaHandler) GeneratePartURL(w http.ResponseWriter, r *http.Request) {
	var req PartURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	ownerID, ok := h.parseOwnerID(w, r, req.OwnerID)
	if !ok {
		return
	}

	url, err := h.service.GeneratePartURL(r.Context(), simpleupload.PartURLRequest{
		OwnerID:    ownerID,
		ObjectKey:  req.Key,
		UploadID:   req.UploadID,
		PartNumber: req.PartNumber,
	})
	if err != nil {
		h.writeError(w, r, "generate part url", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, PartURLResponse{UploadURL: url})
}

// CompleteUploadRequest is the request body for completing an upload. Part
// fields follow the S3 wire format.
type CompleteUploadRequest struct {
	OwnerID  string                       `json:"owner_id"`
	Key      string                       `json:"key"`
	UploadID string                       `json:"upload_id"`
	Parts    []simpleupload.CompletedPart `json:"parts"`
}

// StatusResponse is the response body for terminal state transitions.
type StatusResponse struct {
	Status string `json:"status"`
	Key    string `json:"key,omitempty"`
}

// CompleteUpload finalizes a multipart upload.
func (h *MediaHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	ownerID, ok := h.parseOwnerID(w, r, req.OwnerID)
	if !ok {
		return
	}

	record, err := h.service.CompleteUpload(r.Context(), simpleupload.CompleteUploadRequest{
		OwnerID:   ownerID,
		ObjectKey: req.Key,
		UploadID:  req.UploadID,
		Parts:     req.Parts,
	})
	if err != nil {
		h.writeError(w, r, "complete upload", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatusResponse{Status: "success", Key: record.ObjectKey})
}

// AbortUploadRequest is the request body for aborting an upload.
type AbortUploadRequest struct {
	OwnerID  string `json:"owner_id"`
	Key      string `json:"key"`
	UploadID string `json:"upload_id"`
}

// AbortUpload aborts a multipart upload.
func (h *MediaHandler) AbortUpload(w http.ResponseWriter, r *http.Request) {
	var req AbortUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	ownerID, ok := h.parseOwnerID(w, r, req.OwnerID)
	if !ok {
		return
	}

	err := h.service.AbortUpload(r.Context(), simpleupload.AbortUploadRequest{
		OwnerID:   ownerID,
		ObjectKey: req.Key,
		UploadID:  req.UploadID,
	})
	if err != nil {
		h.writeError(w, r, "abort upload", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatusResponse{Status: "success"})
}

// DirectUpload streams a small file through the server in one call. The
// multipart form carries owner_id, optional title/description and the file.
func (h *MediaHandler) DirectUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDirectUploadMemory); err != nil {
		h.badRequest(w, r, "invalid multipart form")
		return
	}

	ownerID, ok := h.parseOwnerID(w, r, r.FormValue("owner_id"))
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, r, "missing file")
		return
	}
	defer file.Close()

	record, err := h.service.UploadDirect(r.Context(), simpleupload.DirectUploadRequest{
		OwnerID:     ownerID,
		MediaType:   h.mediaType,
		FileName:    header.Filename,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Body:        file,
	})
	if err != nil {
		h.writeError(w, r, "direct upload", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// DownloadURLRequest is the request body for a presigned download URL.
type DownloadURLRequest struct {
	Key string `json:"key"`
}

// DownloadURLResponse is the response body for a presigned download URL.
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// DownloadURL returns a presigned download URL for a finished upload.
func (h *MediaHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	var req DownloadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	url, err := h.service.GetDownloadURL(r.Context(), req.Key)
	if err != nil {
		h.writeError(w, r, "download url", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, DownloadURLResponse{URL: url})
}

// DeleteMediaRequest is the request body for deleting an upload.
type DeleteMediaRequest struct {
	OwnerID string `json:"owner_id"`
	Key     string `json:"key"`
}

// DeleteMedia deletes an owner's upload record and schedules the deferred
// object-store cleanup.
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	var req DeleteMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	ownerID, ok := h.parseOwnerID(w, r, req.OwnerID)
	if !ok {
		return
	}

	if err := h.service.DeleteMedia(r.Context(), ownerID, req.Key); err != nil {
		h.writeError(w, r, "delete media", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatusResponse{Status: "success"})
}

func (h *MediaHandler) parseOwnerID(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, bool) {
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		h.badRequest(w, r, "invalid owner ID")
		return uuid.Nil, false
	}
	return ownerID, true
}

func (h *MediaHandler) badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Detail: detail})
}

// writeError maps the service error taxonomy onto HTTP statuses: validation
// errors are 400, unknown/conflicting/missing records and objects are 404,
// anything touching the store is 500.
func (h *MediaHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, simpleupload.ErrInvalidFilename),
		errors.Is(err, simpleupload.ErrUnsupportedFormat),
		errors.Is(err, simpleupload.ErrInvalidPartNumber):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Detail: err.Error()})

	case errors.Is(err, simpleupload.ErrUploadNotFound),
		errors.Is(err, simpleupload.ErrObjectMissing):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Detail: err.Error()})

	default:
		slog.Error("upload operation failed", "op", op, "media_type", h.mediaType, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Detail: "internal error"})
	}
}
